package types

import (
	"time"
)

// BiomarkerReading is a single time-stamped measurement for one user.
// Readings are owned by the ingestion subsystem and are read-only here;
// they are immutable once written.
type BiomarkerReading struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	BiomarkerType BiomarkerType `json:"biomarker_type"`
	Value         float64       `json:"value"`
	Unit          string        `json:"unit"`
	Source        ReadingSource `json:"source"`
	RecordedAt    time.Time     `json:"recorded_at"`
}

// BiomarkerRange holds the classification thresholds for one biomarker type.
// Reference configuration is externally owned and rarely changes.
//
// Invariant: CriticalLow <= MinNormal <= MinOptimal <= MaxOptimal <=
// MaxNormal <= CriticalHigh. Rows violating the nesting are a configuration
// error and are rejected at load time, never silently accepted.
type BiomarkerRange struct {
	BiomarkerType BiomarkerType `json:"biomarker_type"`
	Unit          string        `json:"unit"`
	MinNormal     float64       `json:"min_normal"`
	MaxNormal     float64       `json:"max_normal"`
	MinOptimal    float64       `json:"min_optimal"`
	MaxOptimal    float64       `json:"max_optimal"`
	CriticalLow   float64       `json:"critical_low"`
	CriticalHigh  float64       `json:"critical_high"`
}

// Nested reports whether the range satisfies the threshold nesting invariant.
func (r BiomarkerRange) Nested() bool {
	return r.CriticalLow <= r.MinNormal &&
		r.MinNormal <= r.MinOptimal &&
		r.MinOptimal <= r.MaxOptimal &&
		r.MaxOptimal <= r.MaxNormal &&
		r.MaxNormal <= r.CriticalHigh
}

// RangeSet is the validated reference-range table keyed by biomarker type.
// A missing entry is not an error; classification fails open to "normal".
type RangeSet map[BiomarkerType]BiomarkerRange

// Validate checks every range in the set against the nesting invariant.
// Returns a config_invalid_range AppError naming the first offending type.
func (rs RangeSet) Validate() error {
	for _, bt := range AllBiomarkerTypes {
		r, ok := rs[bt]
		if !ok {
			continue
		}
		if !r.Nested() {
			return NewAppError(ErrCodeConfigInvalidRange,
				"biomarker range violates threshold nesting", nil).
				WithDetails(map[string]any{"biomarker_type": string(bt)})
		}
	}
	return nil
}

// MetricBlock is one per-metric statistics entry inside a summary payload.
// Field population depends on the metric kind: averaged metrics carry
// avg/min/max, the merged blood pressure block carries the two sub-averages,
// steps carries total/goal/percentage, and sleep carries hours/goal.
// Unused fields are omitted from the serialized payload.
type MetricBlock struct {
	Avg           *float64 `json:"avg,omitempty"`
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	SystolicAvg   *float64 `json:"systolic_avg,omitempty"`
	DiastolicAvg  *float64 `json:"diastolic_avg,omitempty"`
	Total         *int64   `json:"total,omitempty"`
	Percentage    *float64 `json:"percentage,omitempty"`
	Hours         *float64 `json:"hours,omitempty"`
	Goal          *float64 `json:"goal,omitempty"`
	ReadingsCount int      `json:"readings_count,omitempty"`

	Status BiomarkerStatus `json:"status"`
	Trend  Trend           `json:"trend,omitempty"`
}

// SummaryData is the structured document persisted in the summary_data
// column and consumed by the notification dispatcher and the recommendation
// engine. Insights and alerts are ordered lists; the order is stable for a
// fixed set of readings so regeneration is reproducible.
type SummaryData struct {
	Date        string                 `json:"date"`
	SummaryType SummaryKind            `json:"summary_type"`
	Metrics     map[string]MetricBlock `json:"metrics"`
	Insights    []string               `json:"insights"`
	Alerts      []string               `json:"alerts"`
}

// DailyHealthSummary is one persisted summary row. At most one row exists per
// (user_id, summary_date, summary_type); regeneration replaces the row in
// place rather than appending. Rows are never deleted by this engine.
type DailyHealthSummary struct {
	ID                  string        `json:"id"`
	UserID              string        `json:"user_id"`
	SummaryDate         time.Time     `json:"summary_date"` // UTC midnight, date component only
	SummaryType         SummaryKind   `json:"summary_type"`
	SummaryData         SummaryData   `json:"summary_data"`
	OverallStatus       OverallStatus `json:"overall_status"`
	TotalReadings       int           `json:"total_readings"`
	BiomarkersTracked   []string      `json:"biomarkers_tracked"`
	HasCriticalValues   bool          `json:"has_critical_values"`
	HasConcerningValues bool          `json:"has_concerning_values"`
	EmailSent           bool          `json:"email_sent"`
	EmailSentAt         *time.Time    `json:"email_sent_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// DayOf truncates t to its UTC calendar date (midnight UTC). Summary dates
// carry no time component; every comparison in the engine goes through this.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// ParseDay parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
