package summary

import (
	"context"
	"log/slog"
	"time"

	"vitalbrief/internal/types"
)

// SummaryStore is the persistence surface the service needs for generated
// summaries.
type SummaryStore interface {
	Upsert(ctx context.Context, s *types.DailyHealthSummary) error
	GetByDate(ctx context.Context, userID string, day time.Time, kind *types.SummaryKind) (*types.DailyHealthSummary, error)
	ListRange(ctx context.Context, userID string, start, end time.Time, kind *types.SummaryKind) ([]types.DailyHealthSummary, error)
	MarkEmailSent(ctx context.Context, id string, at time.Time) error
}

// ConnectionSource is the boolean gate supplied by the identity collaborator
// for provider-initiated reads.
type ConnectionSource interface {
	Accepted(ctx context.Context, providerUserID, patientUserID string) (bool, error)
}

// Service is the read and regenerate surface over persisted summaries.
// Reads never recompute statistics; downstream consumers get the stored
// document. Absence of a summary is returned as nil, not an error.
type Service struct {
	calc   *Calculator
	store  SummaryStore
	conns  ConnectionSource
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a summary Service.
func NewService(calc *Calculator, store SummaryStore, conns ConnectionSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		calc:   calc,
		store:  store,
		conns:  conns,
		logger: logger,
		now:    time.Now,
	}
}

// GetSummary fetches one user's summary for an exact date, optionally
// filtered by kind. Returns (nil, nil) when no summary was generated for
// that date.
func (s *Service) GetSummary(ctx context.Context, userID string, day time.Time, kind *types.SummaryKind) (*types.DailyHealthSummary, error) {
	return s.store.GetByDate(ctx, userID, day, kind)
}

// GetRange fetches one user's summaries with dates in [start, end]
// inclusive, newest first.
func (s *Service) GetRange(ctx context.Context, userID string, start, end time.Time, kind *types.SummaryKind) ([]types.DailyHealthSummary, error) {
	if types.DayOf(end).Before(types.DayOf(start)) {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidDateRange,
			"end_date must not precede start_date", nil)
	}
	return s.store.ListRange(ctx, userID, start, end, kind)
}

// Regenerate re-runs the calculator for an explicit (user, date, kind) and
// replaces any existing row, resetting notification state so a regenerated
// morning briefing is re-queued for delivery.
func (s *Service) Regenerate(ctx context.Context, userID string, day time.Time, kind types.SummaryKind) (*types.DailyHealthSummary, error) {
	result, err := s.calc.Calculate(ctx, userID, day, kind)
	if err != nil {
		return nil, err
	}

	row := result.ToSummary(userID, day, kind)
	if err := s.store.Upsert(ctx, row); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "summary regenerated",
		"user_id", userID,
		"summary_date", types.FormatDay(day),
		"summary_type", string(kind),
		"overall_status", string(row.OverallStatus),
	)
	return row, nil
}

// ProviderGetSummary is the provider-proxied variant of GetSummary. It
// checks the accepted-connection gate first; without acceptance the call
// fails forbidden and returns nothing, so existence of patient data is never
// leaked past the authorization boundary.
func (s *Service) ProviderGetSummary(ctx context.Context, providerUserID, patientUserID string, day time.Time, kind *types.SummaryKind) (*types.DailyHealthSummary, error) {
	if err := s.requireConnection(ctx, providerUserID, patientUserID); err != nil {
		return nil, err
	}
	return s.GetSummary(ctx, patientUserID, day, kind)
}

// ProviderGetRange is the provider-proxied variant of GetRange.
func (s *Service) ProviderGetRange(ctx context.Context, providerUserID, patientUserID string, start, end time.Time, kind *types.SummaryKind) ([]types.DailyHealthSummary, error) {
	if err := s.requireConnection(ctx, providerUserID, patientUserID); err != nil {
		return nil, err
	}
	return s.GetRange(ctx, patientUserID, start, end, kind)
}

// MarkEmailSent is the notification dispatcher's callback after delivering a
// morning briefing.
func (s *Service) MarkEmailSent(ctx context.Context, summaryID string) error {
	return s.store.MarkEmailSent(ctx, summaryID, s.now().UTC())
}

func (s *Service) requireConnection(ctx context.Context, providerUserID, patientUserID string) error {
	accepted, err := s.conns.Accepted(ctx, providerUserID, patientUserID)
	if err != nil {
		return err
	}
	if !accepted {
		return types.NewAppError(types.ErrCodePermissionNoConnection,
			"no accepted connection with this patient", nil)
	}
	return nil
}
