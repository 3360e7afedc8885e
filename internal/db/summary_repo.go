package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"vitalbrief/internal/types"
)

// SummaryRepository owns the daily_health_summaries table. The table carries
// a unique constraint on (user_id, summary_date, summary_type); Upsert is a
// full-document replace against that constraint, so last-writer-wins applies
// when the scheduled batch and a manual regenerate race on the same row.
type SummaryRepository struct {
	db DBTX
}

// NewSummaryRepository creates a SummaryRepository backed by the given
// database connection (pool or transaction).
func NewSummaryRepository(db DBTX) *SummaryRepository {
	return &SummaryRepository{db: db}
}

const summaryColumns = `id, user_id, summary_date, summary_type, summary_data,
	overall_status, total_readings, biomarkers_tracked,
	has_critical_values, has_concerning_values,
	email_sent, email_sent_at, created_at, updated_at`

// Upsert inserts the summary row or, when one already exists for the same
// (user_id, summary_date, summary_type), replaces its payload, status,
// flags, and email state in place. The email state on write follows the
// summary kind: a morning briefing (re)enters the pending-email state, an
// evening summary never does. Generated row metadata (id, timestamps) is
// written back into s.
func (r *SummaryRepository) Upsert(ctx context.Context, s *types.DailyHealthSummary) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.EmailSent = !s.SummaryType.Emailed()
	s.EmailSentAt = nil

	row := r.db.QueryRow(ctx,
		`INSERT INTO daily_health_summaries
		 (id, user_id, summary_date, summary_type, summary_data,
		  overall_status, total_readings, biomarkers_tracked,
		  has_critical_values, has_concerning_values, email_sent, email_sent_at,
		  created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL, NOW(), NOW())
		 ON CONFLICT (user_id, summary_date, summary_type) DO UPDATE SET
		   summary_data = EXCLUDED.summary_data,
		   overall_status = EXCLUDED.overall_status,
		   total_readings = EXCLUDED.total_readings,
		   biomarkers_tracked = EXCLUDED.biomarkers_tracked,
		   has_critical_values = EXCLUDED.has_critical_values,
		   has_concerning_values = EXCLUDED.has_concerning_values,
		   email_sent = EXCLUDED.email_sent,
		   email_sent_at = NULL,
		   updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		s.ID,
		s.UserID,
		types.DayOf(s.SummaryDate),
		string(s.SummaryType),
		s.SummaryData,
		string(s.OverallStatus),
		s.TotalReadings,
		s.BiomarkersTracked,
		s.HasCriticalValues,
		s.HasConcerningValues,
		s.EmailSent,
	)
	if err := row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert daily health summary", err)
	}
	return nil
}

// GetByDate fetches one user's summary for an exact date, optionally filtered
// by kind. When duplicates exist the most recently created row wins. Absence
// is returned as (nil, nil), not an error; read callers translate that into
// "no summary available".
func (r *SummaryRepository) GetByDate(ctx context.Context, userID string, day time.Time, kind *types.SummaryKind) (*types.DailyHealthSummary, error) {
	sql := `SELECT ` + summaryColumns + `
		 FROM daily_health_summaries
		 WHERE user_id = $1 AND summary_date = $2`
	args := []any{userID, types.DayOf(day)}
	if kind != nil {
		sql += ` AND summary_type = $3`
		args = append(args, string(*kind))
	}
	sql += ` ORDER BY created_at DESC LIMIT 1`

	s, err := scanSummary(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch daily health summary", err)
	}
	return s, nil
}

// ListRange fetches one user's summaries with summary_date in [start, end]
// (inclusive bounds), newest first, optionally filtered by kind.
func (r *SummaryRepository) ListRange(ctx context.Context, userID string, start, end time.Time, kind *types.SummaryKind) ([]types.DailyHealthSummary, error) {
	sql := `SELECT ` + summaryColumns + `
		 FROM daily_health_summaries
		 WHERE user_id = $1 AND summary_date >= $2 AND summary_date <= $3`
	args := []any{userID, types.DayOf(start), types.DayOf(end)}
	if kind != nil {
		sql += ` AND summary_type = $4`
		args = append(args, string(*kind))
	}
	sql += ` ORDER BY summary_date DESC, created_at DESC`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query summary range", err)
	}
	defer rows.Close()

	var summaries []types.DailyHealthSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan summary row", err)
		}
		summaries = append(summaries, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating summary rows", err)
	}
	return summaries, nil
}

// ListPendingBriefings returns morning briefings not yet handed to the
// notification dispatcher, oldest first so a backlog drains in order.
func (r *SummaryRepository) ListPendingBriefings(ctx context.Context, limit int) ([]types.DailyHealthSummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+summaryColumns+`
		 FROM daily_health_summaries
		 WHERE summary_type = $1 AND email_sent = FALSE
		 ORDER BY summary_date, created_at
		 LIMIT $2`,
		string(types.KindMorningBriefing), limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query pending briefings", err)
	}
	defer rows.Close()

	var summaries []types.DailyHealthSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan summary row", err)
		}
		summaries = append(summaries, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating summary rows", err)
	}
	return summaries, nil
}

// MarkEmailSent flips the notification state for one summary. Called by the
// notification dispatcher after it has delivered the briefing; this is the
// only mutation the dispatcher performs on summary rows.
func (r *SummaryRepository) MarkEmailSent(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE daily_health_summaries
		 SET email_sent = TRUE, email_sent_at = $2, updated_at = NOW()
		 WHERE id = $1`,
		id, at.UTC())
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark summary email sent", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSummary, "summary not found", nil)
	}
	return nil
}

// scanSummary reads one summary row from either a pgx.Row or pgx.Rows.
func scanSummary(row pgx.Row) (*types.DailyHealthSummary, error) {
	var s types.DailyHealthSummary
	var kind, overall string
	if err := row.Scan(
		&s.ID, &s.UserID, &s.SummaryDate, &kind, &s.SummaryData,
		&overall, &s.TotalReadings, &s.BiomarkersTracked,
		&s.HasCriticalValues, &s.HasConcerningValues,
		&s.EmailSent, &s.EmailSentAt, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.SummaryType = types.SummaryKind(kind)
	s.OverallStatus = types.OverallStatus(overall)
	s.SummaryDate = types.DayOf(s.SummaryDate)
	return &s, nil
}
