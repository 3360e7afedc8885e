package summary

import (
	"fmt"
	"strconv"
	"strings"

	"vitalbrief/internal/types"
)

// InsightSet is the generated text output for one summary, plus the flags it
// implies.
type InsightSet struct {
	Insights      []string
	Alerts        []string
	HasCritical   bool
	HasConcerning bool
}

// BuildInsights maps classified type aggregates to short insight and alert
// strings. The mapping is deterministic:
//
//	optimal    -> one positive insight naming the metric
//	critical   -> one alert naming the metric and its value; sets HasCritical
//	concerning -> sets HasConcerning only (no alert, no extra noise)
//	normal     -> nothing
//
// aggs arrives in the aggregator's sorted type order, so output order is
// stable for a fixed set of readings. The returned slices are non-nil so the
// persisted payload always carries arrays, never nulls.
func BuildInsights(aggs []TypeAggregate) InsightSet {
	set := InsightSet{
		Insights: []string{},
		Alerts:   []string{},
	}

	for _, ta := range aggs {
		switch ta.Status {
		case types.StatusOptimal:
			set.Insights = append(set.Insights,
				fmt.Sprintf("%s is in optimal range.", displayName(ta.Type)))
		case types.StatusCritical:
			set.HasCritical = true
			set.Alerts = append(set.Alerts,
				fmt.Sprintf("⚠️ Critical %s detected: %s", spokenName(ta.Type), formatValue(ta.Value)))
		case types.StatusConcerning:
			set.HasConcerning = true
		}
	}

	return set
}

// OverallStatus folds all metric statuses for the day into the summary-level
// classification: critical if any metric is critical, needs_attention if any
// is concerning, good otherwise. Every metric participates; none is skipped.
func OverallStatus(aggs []TypeAggregate) types.OverallStatus {
	worst := types.StatusOptimal
	for _, ta := range aggs {
		worst = types.WorseOf(worst, ta.Status)
	}
	switch worst {
	case types.StatusCritical:
		return types.OverallCritical
	case types.StatusConcerning:
		return types.OverallNeedsAttention
	default:
		return types.OverallGood
	}
}

// displayName renders a biomarker type for insight text: "heart_rate"
// becomes "Heart Rate".
func displayName(bt types.BiomarkerType) string {
	words := strings.Split(string(bt), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// spokenName renders a biomarker type for alert text: "heart_rate" becomes
// "heart rate".
func spokenName(bt types.BiomarkerType) string {
	return strings.ReplaceAll(string(bt), "_", " ")
}

// formatValue renders an aggregate value rounded to two decimals without
// trailing zeros (83.33, 8547, 7.5).
func formatValue(v float64) string {
	return strconv.FormatFloat(round2(v), 'f', -1, 64)
}
