package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vitalbrief/internal/types"
)

// DefaultDispatchBatchLimit caps how many pending briefings one dispatch
// invocation scans, so a backlog cannot run the worker past its deadline.
const DefaultDispatchBatchLimit = 100

// PendingSource lists stored morning briefings that have not been emailed.
type PendingSource interface {
	ListPendingBriefings(ctx context.Context, limit int) ([]types.DailyHealthSummary, error)
}

// BriefingPublisher hands a briefing to the delivery queue. Marking the row
// as sent is not the dispatcher's job; the delivery worker reports back after
// the email actually goes out, so a queue that loses the message leaves the
// row pending for the next dispatch run.
type BriefingPublisher interface {
	Publish(ctx context.Context, msg BriefingMessage) error
}

// BriefingMessage is the delivery-queue payload for one morning briefing.
// It carries identifiers and the headline status only; the delivery worker
// reads the full summary document itself.
type BriefingMessage struct {
	SummaryID     string              `json:"summary_id"`
	UserID        string              `json:"user_id"`
	SummaryDate   string              `json:"summary_date"`
	OverallStatus types.OverallStatus `json:"overall_status"`
	TraceID       string              `json:"trace_id"`
	QueuedAt      time.Time           `json:"queued_at"`
}

// DispatchReport is the run outcome for one dispatch invocation.
type DispatchReport struct {
	Scanned  int           `json:"scanned"`
	Queued   int           `json:"queued"`
	Failures []PassFailure `json:"failures,omitempty"`
}

// Dispatcher drains pending morning briefings into the delivery queue.
type Dispatcher struct {
	pending   PendingSource
	publisher BriefingPublisher
	logger    *slog.Logger
	limit     int
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher. limit <= 0 selects
// DefaultDispatchBatchLimit.
func NewDispatcher(pending PendingSource, publisher BriefingPublisher, limit int, logger *slog.Logger) *Dispatcher {
	if limit <= 0 {
		limit = DefaultDispatchBatchLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		pending:   pending,
		publisher: publisher,
		logger:    logger,
		limit:     limit,
		now:       time.Now,
	}
}

// Run performs a single scan-and-publish pass. It does not loop: rows leave
// the pending set only when the delivery worker confirms the send, so
// rescanning within one invocation would republish the same rows.
//
// Publish failures are isolated per summary; the failed rows stay pending
// and are retried on the next scheduled run.
func (d *Dispatcher) Run(ctx context.Context) (*DispatchReport, error) {
	rows, err := d.pending.ListPendingBriefings(ctx, d.limit)
	if err != nil {
		return nil, err
	}

	report := &DispatchReport{Scanned: len(rows)}
	traceID := uuid.New().String()
	queuedAt := d.now().UTC()

	for _, row := range rows {
		msg := BriefingMessage{
			SummaryID:     row.ID,
			UserID:        row.UserID,
			SummaryDate:   types.FormatDay(row.SummaryDate),
			OverallStatus: row.OverallStatus,
			TraceID:       traceID,
			QueuedAt:      queuedAt,
		}

		if err := d.publisher.Publish(ctx, msg); err != nil {
			d.logger.ErrorContext(ctx, "failed to queue briefing",
				"summary_id", row.ID,
				"user_id", row.UserID,
				"trace_id", traceID,
				"error", err,
			)
			report.Failures = append(report.Failures, PassFailure{
				UserID: row.UserID,
				Error:  err.Error(),
			})
			continue
		}
		report.Queued++
	}

	d.logger.InfoContext(ctx, "briefing dispatch finished",
		"scanned", report.Scanned,
		"queued", report.Queued,
		"failure_count", len(report.Failures),
		"trace_id", traceID,
	)

	return report, nil
}
