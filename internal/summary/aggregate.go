package summary

import (
	"math"
	"sort"

	"vitalbrief/internal/types"
)

// Display metric keys in the summary payload. Blood pressure systolic and
// diastolic readings are aggregated independently but merged into a single
// blood_pressure block.
const (
	MetricHeartRate     = "heart_rate"
	MetricBloodPressure = "blood_pressure"
	MetricGlucose       = "glucose"
	MetricSteps         = "steps"
	MetricSleep         = "sleep"
)

// Goals hold the fixed daily targets for the cumulative and single-daily
// metrics.
type Goals struct {
	Steps      int
	SleepHours float64
}

// DefaultGoals returns the standard daily targets: 10 000 steps, 8 hours of
// sleep.
func DefaultGoals() Goals {
	return Goals{Steps: 10000, SleepHours: 8.0}
}

// TypeAggregate is the reduced daily statistic for one raw biomarker type.
// Value carries whichever aggregate the type's kind prescribes: the mean for
// averaged metrics and sleep, the day total for steps.
type TypeAggregate struct {
	Type   types.BiomarkerType
	Value  float64
	Min    float64
	Max    float64
	Count  int
	Status types.BiomarkerStatus
}

// Aggregation is the output of reducing one user-day of readings.
// Types is sorted by biomarker name, giving the insight generator and the
// trend analyzer a stable iteration order so repeated runs over the same
// readings produce identical output.
type Aggregation struct {
	Types             []TypeAggregate
	Metrics           map[string]types.MetricBlock
	TotalReadings     int
	BiomarkersTracked []string
}

// Aggregate groups a day's readings by biomarker type and reduces each group
// to its statistic block.
//
// Averaged metrics (heart rate, blood pressure, glucose) reduce to
// mean/min/max/count and classify on the mean - except that any single
// reading crossing a critical threshold marks the whole day critical, so a
// dangerous spike cannot hide behind the average. Steps sum across the day
// (device readings are partial counts, not repeated measures) and classify
// by goal-percentage band. Sleep reduces to a single value in hours against
// its reference range.
func Aggregate(readings []types.BiomarkerReading, ranges types.RangeSet, goals Goals) Aggregation {
	grouped := make(map[types.BiomarkerType][]float64)
	for _, rd := range readings {
		grouped[rd.BiomarkerType] = append(grouped[rd.BiomarkerType], rd.Value)
	}

	typeNames := make([]string, 0, len(grouped))
	for bt := range grouped {
		typeNames = append(typeNames, string(bt))
	}
	sort.Strings(typeNames)

	agg := Aggregation{
		Metrics:           make(map[string]types.MetricBlock, len(grouped)),
		TotalReadings:     len(readings),
		BiomarkersTracked: typeNames,
	}

	for _, name := range typeNames {
		bt := types.BiomarkerType(name)
		values := grouped[bt]

		var ta TypeAggregate
		switch bt {
		case types.BiomarkerSteps:
			ta = aggregateSteps(values, goals)
		case types.BiomarkerSleep:
			ta = aggregateSleep(values, ranges)
		default:
			ta = aggregateAveraged(bt, values, ranges)
		}
		agg.Types = append(agg.Types, ta)
		mergeBlock(&agg, ta, goals)
	}

	return agg
}

func aggregateAveraged(bt types.BiomarkerType, values []float64, ranges types.RangeSet) TypeAggregate {
	mean, lo, hi := meanMinMax(values)
	status := Classify(ranges, bt, mean)
	// A single reading past a critical bound wins over the mean.
	if status != types.StatusCritical {
		for _, v := range values {
			if crossesCritical(ranges, bt, v) {
				status = types.StatusCritical
				break
			}
		}
	}
	return TypeAggregate{Type: bt, Value: mean, Min: lo, Max: hi, Count: len(values), Status: status}
}

func aggregateSteps(values []float64, goals Goals) TypeAggregate {
	var total float64
	for _, v := range values {
		total += v
	}
	pct := total / float64(goals.Steps) * 100
	return TypeAggregate{
		Type:   types.BiomarkerSteps,
		Value:  total,
		Count:  len(values),
		Status: classifyStepsPct(pct),
	}
}

func aggregateSleep(values []float64, ranges types.RangeSet) TypeAggregate {
	mean, lo, hi := meanMinMax(values)
	return TypeAggregate{
		Type:   types.BiomarkerSleep,
		Value:  mean,
		Min:    lo,
		Max:    hi,
		Count:  len(values),
		Status: Classify(ranges, types.BiomarkerSleep, mean),
	}
}

// mergeBlock folds one type aggregate into the display-keyed metrics map.
// The two blood pressure sub-metrics land in one combined block whose status
// is whichever sub-status is more severe; all other types map one-to-one.
func mergeBlock(agg *Aggregation, ta TypeAggregate, goals Goals) {
	switch ta.Type {
	case types.BiomarkerBPSystolic, types.BiomarkerBPDiastolic:
		block := agg.Metrics[MetricBloodPressure]
		avg := round2(ta.Value)
		if ta.Type == types.BiomarkerBPSystolic {
			block.SystolicAvg = &avg
		} else {
			block.DiastolicAvg = &avg
		}
		// Paired cuff readings give equal counts; the shared count is the
		// larger side when they diverge.
		if ta.Count > block.ReadingsCount {
			block.ReadingsCount = ta.Count
		}
		if block.Status == "" {
			block.Status = ta.Status
		} else {
			block.Status = types.WorseOf(block.Status, ta.Status)
		}
		agg.Metrics[MetricBloodPressure] = block

	case types.BiomarkerSteps:
		total := int64(math.Round(ta.Value))
		goal := float64(goals.Steps)
		pct := round2(ta.Value / goal * 100)
		agg.Metrics[MetricSteps] = types.MetricBlock{
			Total:      &total,
			Goal:       &goal,
			Percentage: &pct,
			Status:     ta.Status,
		}

	case types.BiomarkerSleep:
		hours := round2(ta.Value)
		goal := goals.SleepHours
		agg.Metrics[MetricSleep] = types.MetricBlock{
			Hours:  &hours,
			Goal:   &goal,
			Status: ta.Status,
		}

	default:
		avg, lo, hi := round2(ta.Value), round2(ta.Min), round2(ta.Max)
		agg.Metrics[string(ta.Type)] = types.MetricBlock{
			Avg:           &avg,
			Min:           &lo,
			Max:           &hi,
			ReadingsCount: ta.Count,
			Status:        ta.Status,
		}
	}
}

func meanMinMax(values []float64) (mean, lo, hi float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	lo, hi = values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return sum / float64(len(values)), lo, hi
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
