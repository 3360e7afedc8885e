package batch

import (
	"fmt"
	"time"

	"vitalbrief/internal/types"
)

// TaskType selects which scheduled pass a worker invocation runs.
type TaskType string

const (
	// TaskMorningBriefing generates morning briefings for yesterday's data.
	TaskMorningBriefing TaskType = "morning_briefing"
	// TaskEveningSummary generates evening summaries for today's data so far.
	TaskEveningSummary TaskType = "evening_summary"
	// TaskDispatchBriefings scans stored morning briefings that have not been
	// emailed yet and queues them for delivery.
	TaskDispatchBriefings TaskType = "dispatch_briefings"
)

// SummaryTaskPayload is the scheduler event body for the worker multiplexer.
// TargetDate optionally overrides the date a pass derives from the clock,
// formatted YYYY-MM-DD; it is used for backfills and replays.
type SummaryTaskPayload struct {
	Task       TaskType `json:"task"`
	TargetDate *string  `json:"target_date,omitempty"`
}

// ResolveTarget returns the calendar day a pass should process: the explicit
// TargetDate when present, otherwise the task's own offset from now (morning
// processes yesterday, evening processes today).
func (p SummaryTaskPayload) ResolveTarget(now time.Time) (time.Time, error) {
	if p.TargetDate != nil {
		day, err := types.ParseDay(*p.TargetDate)
		if err != nil {
			return time.Time{}, types.NewAppError(types.ErrCodeValidationInvalidDate,
				fmt.Sprintf("invalid target_date %q, expected YYYY-MM-DD", *p.TargetDate), err)
		}
		return day, nil
	}

	switch p.Task {
	case TaskMorningBriefing:
		return types.DayOf(now).AddDate(0, 0, -1), nil
	case TaskEveningSummary, TaskDispatchBriefings:
		return types.DayOf(now), nil
	default:
		return time.Time{}, types.NewAppError(types.ErrCodeValidationMissingField,
			fmt.Sprintf("unknown task %q", p.Task), nil)
	}
}

// Kind maps a generation task to the summary kind it writes.
func (t TaskType) Kind() (types.SummaryKind, bool) {
	switch t {
	case TaskMorningBriefing:
		return types.KindMorningBriefing, true
	case TaskEveningSummary:
		return types.KindEveningSummary, true
	default:
		return "", false
	}
}
