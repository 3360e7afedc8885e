package db

import (
	"context"
	"time"

	"vitalbrief/internal/types"
)

// ReadingRepository provides read-only access to the biomarker_readings
// table, which is owned by the ingestion subsystem. Both query shapes are
// bounded, finite day-window scans: the per-day query feeds the aggregator
// and the trailing-window query feeds the trend analyzer.
type ReadingRepository struct {
	db DBTX
}

// NewReadingRepository creates a ReadingRepository backed by the given
// database connection (pool or transaction).
func NewReadingRepository(db DBTX) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// ListForDay returns every reading for one user whose recorded_at falls
// within [day, day+24h). day must be a UTC midnight as produced by
// types.DayOf.
func (r *ReadingRepository) ListForDay(ctx context.Context, userID string, day time.Time) ([]types.BiomarkerReading, error) {
	start := types.DayOf(day)
	end := start.AddDate(0, 0, 1)
	return r.list(ctx,
		`SELECT id, user_id, biomarker_type, value, unit, source, recorded_at
		 FROM biomarker_readings
		 WHERE user_id = $1 AND recorded_at >= $2 AND recorded_at < $3
		 ORDER BY recorded_at`,
		userID, start, end)
}

// ListWindow returns every reading of one biomarker type for one user within
// [start, end). Used for trailing trend windows, where end is the target
// date's midnight so the target day itself is excluded.
func (r *ReadingRepository) ListWindow(ctx context.Context, userID string, bt types.BiomarkerType, start, end time.Time) ([]types.BiomarkerReading, error) {
	return r.list(ctx,
		`SELECT id, user_id, biomarker_type, value, unit, source, recorded_at
		 FROM biomarker_readings
		 WHERE user_id = $1 AND biomarker_type = $2
		   AND recorded_at >= $3 AND recorded_at < $4
		 ORDER BY recorded_at`,
		userID, string(bt), start, end)
}

// DistinctUsersForDay enumerates the users with at least one reading in the
// given day's window. This is the eligibility query for a batch pass.
func (r *ReadingRepository) DistinctUsersForDay(ctx context.Context, day time.Time) ([]string, error) {
	start := types.DayOf(day)
	end := start.AddDate(0, 0, 1)

	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT user_id
		 FROM biomarker_readings
		 WHERE recorded_at >= $1 AND recorded_at < $2
		 ORDER BY user_id`,
		start, end)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to enumerate users with readings", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan user id", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating user rows", err)
	}
	return users, nil
}

func (r *ReadingRepository) list(ctx context.Context, sql string, args ...any) ([]types.BiomarkerReading, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query biomarker readings", err)
	}
	defer rows.Close()

	var readings []types.BiomarkerReading
	for rows.Next() {
		var rd types.BiomarkerReading
		var bt, source string
		if err := rows.Scan(&rd.ID, &rd.UserID, &bt, &rd.Value, &rd.Unit, &source, &rd.RecordedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reading row", err)
		}
		rd.BiomarkerType = types.BiomarkerType(bt)
		rd.Source = types.ReadingSource(source)
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating reading rows", err)
	}
	return readings, nil
}
