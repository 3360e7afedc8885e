package db

import (
	"context"
	"sync"
	"time"

	"vitalbrief/internal/types"
)

// rangeCacheTTL bounds how long a loaded reference table is reused before
// re-reading. Ranges change rarely, so a short TTL keeps batch passes from
// hammering the table without risking stale thresholds for long.
const rangeCacheTTL = 5 * time.Minute

// RangeRepository loads the read-only biomarker_ranges reference table.
// Every load validates the threshold nesting invariant; a violating row is a
// configuration error surfaced at load time, never mid-classification.
type RangeRepository struct {
	db DBTX

	mu       sync.Mutex
	cached   types.RangeSet
	loadedAt time.Time
	now      func() time.Time // injectable for tests
}

// NewRangeRepository creates a RangeRepository backed by the given database
// connection.
func NewRangeRepository(db DBTX) *RangeRepository {
	return &RangeRepository{db: db, now: time.Now}
}

// Ranges returns the validated reference-range table, serving a cached copy
// when one is fresh enough.
func (r *RangeRepository) Ranges(ctx context.Context) (types.RangeSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && r.now().Sub(r.loadedAt) < rangeCacheTTL {
		return r.cached, nil
	}

	set, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}

	r.cached = set
	r.loadedAt = r.now()
	return set, nil
}

func (r *RangeRepository) load(ctx context.Context) (types.RangeSet, error) {
	rows, err := r.db.Query(ctx,
		`SELECT biomarker_type, unit, min_normal, max_normal,
		        min_optimal, max_optimal, critical_low, critical_high
		 FROM biomarker_ranges`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query biomarker ranges", err)
	}
	defer rows.Close()

	set := make(types.RangeSet)
	for rows.Next() {
		var br types.BiomarkerRange
		var bt string
		if err := rows.Scan(&bt, &br.Unit, &br.MinNormal, &br.MaxNormal,
			&br.MinOptimal, &br.MaxOptimal, &br.CriticalLow, &br.CriticalHigh); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan range row", err)
		}
		br.BiomarkerType = types.BiomarkerType(bt)
		set[br.BiomarkerType] = br
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating range rows", err)
	}
	return set, nil
}
