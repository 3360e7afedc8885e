// Package batch implements the scheduled passes that generate daily health
// summaries for every active user and queue morning briefings for delivery.
// Passes are invoked by the worker multiplexer; each pass enumerates its user
// set, runs the per-user calculation concurrently with a bounded worker pool,
// and reports per-user failures without aborting the run.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vitalbrief/internal/summary"
	"vitalbrief/internal/types"
)

// DefaultWorkers bounds concurrent per-user calculations when the config
// does not set a pool size.
const DefaultWorkers = 8

// UserSource enumerates the users a pass must process: everyone with at
// least one biomarker reading on the target date.
type UserSource interface {
	DistinctUsersForDay(ctx context.Context, day time.Time) ([]string, error)
}

// Calculator produces the summary result for one user and date.
type Calculator interface {
	Calculate(ctx context.Context, userID string, targetDate time.Time, kind types.SummaryKind) (*summary.Result, error)
}

// SummaryWriter persists generated summaries.
type SummaryWriter interface {
	Upsert(ctx context.Context, s *types.DailyHealthSummary) error
}

// MetricPublisher emits pass observability metrics. The heartbeat fires on
// every completed pass, including zero-user runs, so a silent scheduler is
// distinguishable from a quiet day.
type MetricPublisher interface {
	PublishPassHeartbeat(ctx context.Context, kind types.SummaryKind) error
	PublishPassStats(ctx context.Context, kind types.SummaryKind, processed, created, withAlerts int) error
}

// PassFailure records one user the pass could not generate a summary for.
type PassFailure struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// PassReport is the run outcome for one scheduled pass. A user with no
// readings on the target date counts as processed but creates nothing;
// that is the expected state for inactive users, not a failure.
type PassReport struct {
	Kind                types.SummaryKind `json:"summary_type"`
	TargetDate          string            `json:"target_date"`
	TotalUsersProcessed int               `json:"total_users_processed"`
	SummariesCreated    int               `json:"summaries_created"`
	UsersWithAlerts     int               `json:"users_with_alerts"`
	Failures            []PassFailure     `json:"failures,omitempty"`
}

// Orchestrator runs the morning and evening generation passes.
type Orchestrator struct {
	users   UserSource
	calc    Calculator
	store   SummaryWriter
	metrics MetricPublisher
	logger  *slog.Logger
	workers int
}

// NewOrchestrator creates an Orchestrator. workers <= 0 selects
// DefaultWorkers.
func NewOrchestrator(users UserSource, calc Calculator, store SummaryWriter, metrics MetricPublisher, workers int, logger *slog.Logger) *Orchestrator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		users:   users,
		calc:    calc,
		store:   store,
		metrics: metrics,
		logger:  logger,
		workers: workers,
	}
}

// RunMorningPass generates morning briefings. Without an explicit target the
// pass covers yesterday: the briefing a user reads over breakfast describes
// the full previous day.
func (o *Orchestrator) RunMorningPass(ctx context.Context, now time.Time) (*PassReport, error) {
	return o.run(ctx, types.DayOf(now).AddDate(0, 0, -1), types.KindMorningBriefing)
}

// RunEveningPass generates evening summaries for today's readings so far.
func (o *Orchestrator) RunEveningPass(ctx context.Context, now time.Time) (*PassReport, error) {
	return o.run(ctx, types.DayOf(now), types.KindEveningSummary)
}

// RunPassFor runs a generation pass against an explicit target date.
func (o *Orchestrator) RunPassFor(ctx context.Context, target time.Time, kind types.SummaryKind) (*PassReport, error) {
	return o.run(ctx, types.DayOf(target), kind)
}

func (o *Orchestrator) run(ctx context.Context, target time.Time, kind types.SummaryKind) (*PassReport, error) {
	report := &PassReport{
		Kind:       kind,
		TargetDate: types.FormatDay(target),
	}

	userIDs, err := o.users.DistinctUsersForDay(ctx, target)
	if err != nil {
		return nil, err
	}
	report.TotalUsersProcessed = len(userIDs)

	o.logger.InfoContext(ctx, "summary pass started",
		"summary_type", string(kind),
		"target_date", report.TargetDate,
		"user_count", len(userIDs),
		"workers", o.workers,
	)

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for _, userID := range userIDs {
		userID := userID

		g.Go(func() error {
			created, hasAlerts, err := o.processUser(gCtx, userID, target, kind)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Failure isolation: one bad user never aborts the pass.
				report.Failures = append(report.Failures, PassFailure{
					UserID: userID,
					Error:  err.Error(),
				})
				return nil
			}
			if created {
				report.SummariesCreated++
			}
			if hasAlerts {
				report.UsersWithAlerts++
			}
			return nil
		})
	}

	// Workers swallow their own errors; Wait only observes ctx cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].UserID < report.Failures[j].UserID
	})

	o.publishMetrics(ctx, kind, report)

	o.logger.InfoContext(ctx, "summary pass finished",
		"summary_type", string(kind),
		"target_date", report.TargetDate,
		"total_users_processed", report.TotalUsersProcessed,
		"summaries_created", report.SummariesCreated,
		"users_with_alerts", report.UsersWithAlerts,
		"failure_count", len(report.Failures),
	)

	return report, nil
}

// processUser runs one user's calculation and write. A no-data result is a
// skip, not an error: the user was enumerated from readings on the target
// date, but the readings may have been deleted between enumeration and
// calculation.
func (o *Orchestrator) processUser(ctx context.Context, userID string, target time.Time, kind types.SummaryKind) (created, hasAlerts bool, err error) {
	result, err := o.calc.Calculate(ctx, userID, target, kind)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNoDataForDate {
			o.logger.DebugContext(ctx, "no data for user on target date, skipping",
				"user_id", userID,
				"target_date", types.FormatDay(target),
			)
			return false, false, nil
		}
		o.logger.ErrorContext(ctx, "summary calculation failed",
			"user_id", userID,
			"target_date", types.FormatDay(target),
			"summary_type", string(kind),
			"error", err,
		)
		return false, false, err
	}

	row := result.ToSummary(userID, target, kind)
	if err := o.store.Upsert(ctx, row); err != nil {
		o.logger.ErrorContext(ctx, "summary write failed",
			"user_id", userID,
			"target_date", types.FormatDay(target),
			"error", err,
		)
		return false, false, err
	}

	return true, result.HasCriticalValues, nil
}

func (o *Orchestrator) publishMetrics(ctx context.Context, kind types.SummaryKind, report *PassReport) {
	if o.metrics == nil {
		return
	}
	if err := o.metrics.PublishPassHeartbeat(ctx, kind); err != nil {
		// Non-fatal: never fail a pass for a metric publish error.
		o.logger.WarnContext(ctx, "failed to publish pass heartbeat",
			"summary_type", string(kind),
			"error", err,
		)
	}
	if err := o.metrics.PublishPassStats(ctx, kind,
		report.TotalUsersProcessed, report.SummariesCreated, report.UsersWithAlerts); err != nil {
		o.logger.WarnContext(ctx, "failed to publish pass stats",
			"summary_type", string(kind),
			"error", err,
		)
	}
}
