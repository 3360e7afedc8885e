package summary

import (
	"context"
	"log/slog"
	"time"

	"vitalbrief/internal/types"
)

// ReadingSource is the read-only access the calculator needs to the raw
// biomarker store.
type ReadingSource interface {
	// ListForDay returns all readings for one user within [day, day+24h).
	ListForDay(ctx context.Context, userID string, day time.Time) ([]types.BiomarkerReading, error)
	// ListWindow returns all readings of one type for one user within
	// [start, end).
	ListWindow(ctx context.Context, userID string, bt types.BiomarkerType, start, end time.Time) ([]types.BiomarkerReading, error)
}

// RangeSource supplies the validated reference-range table.
type RangeSource interface {
	Ranges(ctx context.Context) (types.RangeSet, error)
}

// Result is the computed output for one user, date, and summary kind, ready
// to be persisted as a DailyHealthSummary row.
type Result struct {
	SummaryData         types.SummaryData
	TotalReadings       int
	BiomarkersTracked   []string
	HasCriticalValues   bool
	HasConcerningValues bool
	OverallStatus       types.OverallStatus
}

// ToSummary shapes the result into a persistable row. Email state is decided
// by the store on write, according to the summary kind.
func (r *Result) ToSummary(userID string, day time.Time, kind types.SummaryKind) *types.DailyHealthSummary {
	return &types.DailyHealthSummary{
		UserID:              userID,
		SummaryDate:         types.DayOf(day),
		SummaryType:         kind,
		SummaryData:         r.SummaryData,
		OverallStatus:       r.OverallStatus,
		TotalReadings:       r.TotalReadings,
		BiomarkersTracked:   r.BiomarkersTracked,
		HasCriticalValues:   r.HasCriticalValues,
		HasConcerningValues: r.HasConcerningValues,
	}
}

// Calculator runs the sequential per-user pipeline: aggregate the day's
// readings, classify them, attach trends from the trailing window, and
// generate insights and alerts. There is no concurrency within one
// calculation; each stage consumes the previous stage's output.
type Calculator struct {
	readings ReadingSource
	ranges   RangeSource
	goals    Goals
	analyzer Analyzer
	logger   *slog.Logger
}

// NewCalculator creates a Calculator with the given data sources and
// tunables.
func NewCalculator(readings ReadingSource, ranges RangeSource, goals Goals, analyzer Analyzer, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		readings: readings,
		ranges:   ranges,
		goals:    goals,
		analyzer: analyzer,
		logger:   logger,
	}
}

// Calculate produces the summary result for one user and calendar date.
// Zero readings on the target date is a no_data_for_date failure: absence of
// data is a "not generated" state, never a summary with empty content.
func (c *Calculator) Calculate(ctx context.Context, userID string, targetDate time.Time, kind types.SummaryKind) (*Result, error) {
	day := types.DayOf(targetDate)

	readings, err := c.readings.ListForDay(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, types.NewAppError(types.ErrCodeNoDataForDate,
			"no biomarker data for this date", nil).
			WithDetails(map[string]any{
				"user_id": userID,
				"date":    types.FormatDay(day),
			})
	}

	ranges, err := c.ranges.Ranges(ctx)
	if err != nil {
		return nil, err
	}

	agg := Aggregate(readings, ranges, c.goals)
	c.attachTrends(ctx, userID, day, ranges, &agg)

	set := BuildInsights(agg.Types)

	return &Result{
		SummaryData: types.SummaryData{
			Date:        types.FormatDay(day),
			SummaryType: kind,
			Metrics:     agg.Metrics,
			Insights:    set.Insights,
			Alerts:      set.Alerts,
		},
		TotalReadings:       agg.TotalReadings,
		BiomarkersTracked:   agg.BiomarkersTracked,
		HasCriticalValues:   set.HasCritical,
		HasConcerningValues: set.HasConcerning,
		OverallStatus:       OverallStatus(agg.Types),
	}, nil
}

// attachTrends labels each metric block with its trailing-window trend. A
// window query failure degrades to an omitted trend rather than failing the
// whole summary; trend is an enrichment, not a required stage output.
func (c *Calculator) attachTrends(ctx context.Context, userID string, day time.Time, ranges types.RangeSet, agg *Aggregation) {
	start := day.AddDate(0, 0, -c.analyzer.WindowDays)

	for _, ta := range agg.Types {
		window, err := c.readings.ListWindow(ctx, userID, ta.Type, start, day)
		if err != nil {
			c.logger.WarnContext(ctx, "trend window query failed, omitting trend",
				"user_id", userID,
				"biomarker_type", string(ta.Type),
				"error", err,
			)
			continue
		}

		trend := c.analyzer.Trend(ta, window, ranges, c.goals)
		if trend == "" {
			continue
		}
		c.setBlockTrend(agg, ta.Type, trend)
	}
}

// setBlockTrend writes a trend onto the display block for a type. The merged
// blood pressure block keeps the worse of its two sub-metric trends.
func (c *Calculator) setBlockTrend(agg *Aggregation, bt types.BiomarkerType, trend types.Trend) {
	key := blockKey(bt)
	block, ok := agg.Metrics[key]
	if !ok {
		return
	}
	if key == MetricBloodPressure && block.Trend != "" {
		block.Trend = worseTrend(block.Trend, trend)
	} else {
		block.Trend = trend
	}
	agg.Metrics[key] = block
}

// blockKey maps a raw biomarker type to its display metric key.
func blockKey(bt types.BiomarkerType) string {
	switch bt {
	case types.BiomarkerBPSystolic, types.BiomarkerBPDiastolic:
		return MetricBloodPressure
	case types.BiomarkerSteps:
		return MetricSteps
	case types.BiomarkerSleep:
		return MetricSleep
	default:
		return string(bt)
	}
}

// worseTrend orders trends declining > stable > improving.
func worseTrend(a, b types.Trend) types.Trend {
	rank := func(t types.Trend) int {
		switch t {
		case types.TrendDeclining:
			return 2
		case types.TrendStable:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
