package types

// BiomarkerType identifies a single kind of physiological measurement.
// The set is fixed; readings carrying an unknown type are ignored by the
// aggregation pipeline.
type BiomarkerType string

const (
	BiomarkerHeartRate   BiomarkerType = "heart_rate"
	BiomarkerBPSystolic  BiomarkerType = "blood_pressure_systolic"
	BiomarkerBPDiastolic BiomarkerType = "blood_pressure_diastolic"
	BiomarkerGlucose     BiomarkerType = "glucose"
	BiomarkerSteps       BiomarkerType = "steps"
	BiomarkerSleep       BiomarkerType = "sleep_duration"
)

// AllBiomarkerTypes lists every tracked biomarker. Used by validators and by
// the range loader to detect unknown configuration rows.
var AllBiomarkerTypes = []BiomarkerType{
	BiomarkerHeartRate,
	BiomarkerBPSystolic,
	BiomarkerBPDiastolic,
	BiomarkerGlucose,
	BiomarkerSteps,
	BiomarkerSleep,
}

// ReadingSource records how a reading entered the system.
type ReadingSource string

const (
	SourceDevice ReadingSource = "device"
	SourceManual ReadingSource = "manual"
)

// SummaryKind distinguishes the two daily summary variants. A morning
// briefing covers yesterday and is queued for email delivery; an evening
// summary covers the still-in-progress day and is informational only.
type SummaryKind string

const (
	KindMorningBriefing SummaryKind = "morning_briefing"
	KindEveningSummary  SummaryKind = "evening_summary"
)

// Emailed reports whether summaries of this kind enter the email pipeline.
// Evening summaries never do; they are stored with email_sent already set so
// the dispatcher's pending scan skips them.
func (k SummaryKind) Emailed() bool {
	return k == KindMorningBriefing
}

// Valid reports whether k is a known summary kind.
func (k SummaryKind) Valid() bool {
	return k == KindMorningBriefing || k == KindEveningSummary
}

// BiomarkerStatus is the classification of a metric value against its
// reference range.
type BiomarkerStatus string

const (
	StatusOptimal    BiomarkerStatus = "optimal"
	StatusNormal     BiomarkerStatus = "normal"
	StatusConcerning BiomarkerStatus = "concerning"
	StatusCritical   BiomarkerStatus = "critical"
)

// Severity orders statuses for worst-of comparisons:
// critical > concerning > normal > optimal.
func (s BiomarkerStatus) Severity() int {
	switch s {
	case StatusCritical:
		return 3
	case StatusConcerning:
		return 2
	case StatusNormal:
		return 1
	case StatusOptimal:
		return 0
	default:
		return 0
	}
}

// WorseOf returns the more severe of two statuses.
func WorseOf(a, b BiomarkerStatus) BiomarkerStatus {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// OverallStatus is the worst-case daily classification across all tracked
// metrics.
type OverallStatus string

const (
	OverallGood           OverallStatus = "good"
	OverallNeedsAttention OverallStatus = "needs_attention"
	OverallCritical       OverallStatus = "critical"
)

// Trend labels the direction of a metric's daily aggregate relative to its
// trailing window, measured as distance to the optimal band - not raw numeric
// movement.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// ConnectionStatus is the state of a provider-patient connection, as reported
// by the external identity collaborator.
type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionRejected ConnectionStatus = "rejected"
)
