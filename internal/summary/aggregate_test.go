package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalbrief/internal/types"
)

func reading(bt types.BiomarkerType, value float64) types.BiomarkerReading {
	return types.BiomarkerReading{
		UserID:        "user-1",
		BiomarkerType: bt,
		Value:         value,
		Source:        types.SourceDevice,
		RecordedAt:    time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func fullRanges() types.RangeSet {
	rs := heartRateRanges()
	rs[types.BiomarkerBPSystolic] = types.BiomarkerRange{
		BiomarkerType: types.BiomarkerBPSystolic,
		CriticalLow:   70, MinNormal: 90, MinOptimal: 100, MaxOptimal: 120, MaxNormal: 130, CriticalHigh: 180,
	}
	rs[types.BiomarkerBPDiastolic] = types.BiomarkerRange{
		BiomarkerType: types.BiomarkerBPDiastolic,
		CriticalLow:   40, MinNormal: 60, MinOptimal: 65, MaxOptimal: 80, MaxNormal: 90, CriticalHigh: 120,
	}
	rs[types.BiomarkerSleep] = types.BiomarkerRange{
		BiomarkerType: types.BiomarkerSleep,
		CriticalLow:   3, MinNormal: 6, MinOptimal: 7, MaxOptimal: 9, MaxNormal: 10, CriticalHigh: 14,
	}
	return rs
}

func TestAggregateAveragedMetric(t *testing.T) {
	readings := []types.BiomarkerReading{
		reading(types.BiomarkerHeartRate, 60),
		reading(types.BiomarkerHeartRate, 70),
		reading(types.BiomarkerHeartRate, 80),
	}

	agg := Aggregate(readings, fullRanges(), DefaultGoals())

	block, ok := agg.Metrics[MetricHeartRate]
	require.True(t, ok)
	assert.Equal(t, 70.0, *block.Avg)
	assert.Equal(t, 60.0, *block.Min)
	assert.Equal(t, 80.0, *block.Max)
	assert.Equal(t, 3, block.ReadingsCount)
	assert.Equal(t, types.StatusOptimal, block.Status)
	assert.Equal(t, 3, agg.TotalReadings)
	assert.Equal(t, []string{"heart_rate"}, agg.BiomarkersTracked)

	// min/max bound every input value.
	for _, rd := range readings {
		assert.GreaterOrEqual(t, rd.Value, *block.Min)
		assert.LessOrEqual(t, rd.Value, *block.Max)
	}
}

// Steps sum across the day; multiple device readings are partial counts, not
// repeated measures of one quantity.
func TestAggregateStepsSumsNotAverages(t *testing.T) {
	readings := []types.BiomarkerReading{
		reading(types.BiomarkerSteps, 3000),
		reading(types.BiomarkerSteps, 2547),
		reading(types.BiomarkerSteps, 3000),
	}

	agg := Aggregate(readings, fullRanges(), DefaultGoals())

	block, ok := agg.Metrics[MetricSteps]
	require.True(t, ok)
	assert.Equal(t, int64(8547), *block.Total)
	assert.Equal(t, 10000.0, *block.Goal)
	assert.Equal(t, 85.47, *block.Percentage)
	assert.Equal(t, types.StatusNormal, block.Status)
}

// A single reading past critical_high marks the day critical even though the
// mean (~83.3) sits in the normal range: a dangerous spike must not be
// masked by averaging.
func TestAggregateCriticalSpikeWinsOverMean(t *testing.T) {
	readings := []types.BiomarkerReading{
		reading(types.BiomarkerHeartRate, 58),
		reading(types.BiomarkerHeartRate, 62),
		reading(types.BiomarkerHeartRate, 130),
	}

	agg := Aggregate(readings, fullRanges(), DefaultGoals())

	block := agg.Metrics[MetricHeartRate]
	assert.Equal(t, 83.33, *block.Avg)
	assert.Equal(t, types.StatusCritical, block.Status)
}

func TestAggregateBloodPressureMerges(t *testing.T) {
	readings := []types.BiomarkerReading{
		reading(types.BiomarkerBPSystolic, 118),
		reading(types.BiomarkerBPSystolic, 122),
		reading(types.BiomarkerBPDiastolic, 76),
		reading(types.BiomarkerBPDiastolic, 84),
	}

	agg := Aggregate(readings, fullRanges(), DefaultGoals())

	require.Len(t, agg.Metrics, 1)
	block, ok := agg.Metrics[MetricBloodPressure]
	require.True(t, ok)
	assert.Equal(t, 120.0, *block.SystolicAvg)
	assert.Equal(t, 80.0, *block.DiastolicAvg)
	assert.Equal(t, 2, block.ReadingsCount)
	// Both sub-metric means are optimal.
	assert.Equal(t, types.StatusOptimal, block.Status)
	assert.Equal(t, 4, agg.TotalReadings)
}

// The merged blood pressure status is the more severe of the two
// sub-metrics.
func TestAggregateBloodPressureWorstStatusWins(t *testing.T) {
	readings := []types.BiomarkerReading{
		reading(types.BiomarkerBPSystolic, 118), // optimal
		reading(types.BiomarkerBPDiastolic, 95), // concerning (above max_normal 90)
	}

	agg := Aggregate(readings, fullRanges(), DefaultGoals())

	block := agg.Metrics[MetricBloodPressure]
	assert.Equal(t, types.StatusConcerning, block.Status)
}

func TestAggregateSleepMeanHours(t *testing.T) {
	readings := []types.BiomarkerReading{
		reading(types.BiomarkerSleep, 7.5),
		reading(types.BiomarkerSleep, 8.5),
	}

	agg := Aggregate(readings, fullRanges(), DefaultGoals())

	block, ok := agg.Metrics[MetricSleep]
	require.True(t, ok)
	assert.Equal(t, 8.0, *block.Hours)
	assert.Equal(t, 8.0, *block.Goal)
	assert.Equal(t, types.StatusOptimal, block.Status)
}

// Type iteration order is sorted by biomarker name, so output is stable
// across runs regardless of map iteration order.
func TestAggregateStableTypeOrder(t *testing.T) {
	readings := []types.BiomarkerReading{
		reading(types.BiomarkerSteps, 1000),
		reading(types.BiomarkerHeartRate, 70),
		reading(types.BiomarkerGlucose, 95),
	}

	for i := 0; i < 10; i++ {
		agg := Aggregate(readings, fullRanges(), DefaultGoals())
		var order []string
		for _, ta := range agg.Types {
			order = append(order, string(ta.Type))
		}
		assert.Equal(t, []string{"glucose", "heart_rate", "steps"}, order)
	}
}
