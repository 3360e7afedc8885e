package summary

import (
	"math"
	"sort"

	"vitalbrief/internal/types"
)

// Analyzer computes trend labels by comparing today's aggregate against the
// mean of the same metric over a trailing window of days.
//
// Direction is measured as distance to the metric's optimal band, not raw
// numeric movement, so the rule is symmetric across lower-is-better,
// higher-is-better, and mid-range-is-better metrics: moving toward the band
// is improving regardless of sign.
type Analyzer struct {
	// WindowDays is the trailing window length (readings strictly before the
	// target date).
	WindowDays int
	// TolerancePct defines the stable band as a percentage of the optimal
	// range width. Changes in distance-to-optimal smaller than this are
	// labeled stable.
	TolerancePct float64
}

// NewAnalyzer returns an Analyzer with the standard 7-day window and 10%
// stability tolerance.
func NewAnalyzer() Analyzer {
	return Analyzer{WindowDays: 7, TolerancePct: 10}
}

// Trend labels the movement of today's aggregate relative to the trailing
// window. It returns the empty Trend when no prior-window data exists or
// when the metric has no optimal band to measure against (no reference
// range and no goal).
func (a Analyzer) Trend(today TypeAggregate, window []types.BiomarkerReading, ranges types.RangeSet, goals Goals) types.Trend {
	prior, ok := windowAggregate(today.Type, window)
	if !ok {
		return ""
	}

	lo, hi, tol, ok := a.optimalBand(today.Type, ranges, goals)
	if !ok {
		return ""
	}

	dToday := distToBand(today.Value, lo, hi)
	dPrior := distToBand(prior, lo, hi)

	if math.Abs(dToday-dPrior) <= tol {
		return types.TrendStable
	}
	if dToday < dPrior {
		return types.TrendImproving
	}
	return types.TrendDeclining
}

// windowAggregate reduces the trailing window to a single comparable value:
// readings are grouped by calendar day, each day is reduced the same way the
// daily aggregator reduces it (sum for steps, mean otherwise), and the
// per-day values are averaged. Returns ok=false for an empty window.
func windowAggregate(bt types.BiomarkerType, window []types.BiomarkerReading) (float64, bool) {
	if len(window) == 0 {
		return 0, false
	}

	byDay := make(map[string][]float64)
	for _, rd := range window {
		key := types.FormatDay(types.DayOf(rd.RecordedAt))
		byDay[key] = append(byDay[key], rd.Value)
	}

	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	var sum float64
	for _, d := range days {
		values := byDay[d]
		if bt == types.BiomarkerSteps {
			var total float64
			for _, v := range values {
				total += v
			}
			sum += total
		} else {
			mean, _, _ := meanMinMax(values)
			sum += mean
		}
	}
	return sum / float64(len(days)), true
}

// optimalBand resolves the band a metric is measured against and the
// stability tolerance derived from its width. Steps have no reference range;
// their band is everything at or above the daily goal, with tolerance taken
// from the goal itself. Metrics with neither a range nor a goal have no band
// and produce no trend.
func (a Analyzer) optimalBand(bt types.BiomarkerType, ranges types.RangeSet, goals Goals) (lo, hi, tol float64, ok bool) {
	pct := a.TolerancePct / 100

	if bt == types.BiomarkerSteps {
		goal := float64(goals.Steps)
		return goal, math.Inf(1), pct * goal, true
	}

	r, found := ranges[bt]
	if !found {
		return 0, 0, 0, false
	}

	width := r.MaxOptimal - r.MinOptimal
	if width <= 0 {
		// Degenerate optimal band; fall back to the normal range width.
		width = r.MaxNormal - r.MinNormal
	}
	tol = pct * width
	if tol <= 0 {
		tol = math.SmallestNonzeroFloat64
	}
	return r.MinOptimal, r.MaxOptimal, tol, true
}

// distToBand is zero inside [lo, hi] and the distance to the nearest edge
// outside it.
func distToBand(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	default:
		return 0
	}
}
