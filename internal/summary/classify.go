// Package summary implements the daily health summary pipeline: range
// classification, per-day aggregation, trend analysis against a trailing
// window, insight and alert generation, and the calculator that composes
// them into one persisted summary per user, date, and summary kind.
package summary

import (
	"vitalbrief/internal/types"
)

// Step goal-percentage bands. Steps are classified against goal achievement,
// not against the generic reference-range table: meeting the goal is
// optimal, at least half of it is normal, and anything below that is
// concerning. A low step count is never critical.
const (
	stepsOptimalPct = 100
	stepsNormalPct  = 50
)

// Classify maps a biomarker value to a status using the reference range for
// its type, evaluated in strict precedence order: critical beats concerning
// even when a value violates both thresholds at once. A type with no
// configured range classifies as normal (fail open - this is a wellness
// summary, not a diagnosis).
func Classify(ranges types.RangeSet, bt types.BiomarkerType, value float64) types.BiomarkerStatus {
	r, ok := ranges[bt]
	if !ok {
		return types.StatusNormal
	}
	return classifyAgainst(r, value)
}

func classifyAgainst(r types.BiomarkerRange, value float64) types.BiomarkerStatus {
	switch {
	case value < r.CriticalLow || value > r.CriticalHigh:
		return types.StatusCritical
	case value < r.MinNormal || value > r.MaxNormal:
		return types.StatusConcerning
	case value >= r.MinOptimal && value <= r.MaxOptimal:
		return types.StatusOptimal
	default:
		return types.StatusNormal
	}
}

// crossesCritical reports whether a single reading breaches either critical
// threshold. The aggregator uses this to keep a dangerous spike from being
// masked by the daily mean.
func crossesCritical(ranges types.RangeSet, bt types.BiomarkerType, value float64) bool {
	r, ok := ranges[bt]
	if !ok {
		return false
	}
	return value < r.CriticalLow || value > r.CriticalHigh
}

// classifyStepsPct classifies a step total expressed as a percentage of the
// daily goal.
func classifyStepsPct(pct float64) types.BiomarkerStatus {
	switch {
	case pct >= stepsOptimalPct:
		return types.StatusOptimal
	case pct >= stepsNormalPct:
		return types.StatusNormal
	default:
		return types.StatusConcerning
	}
}
