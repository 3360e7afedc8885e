package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"vitalbrief/internal/types"
)

// ConnectionRepository reads the provider-patient connection state owned by
// the identity subsystem. The engine treats it purely as a boolean gate:
// either an accepted connection exists between the two users or it does not.
type ConnectionRepository struct {
	db DBTX
}

// NewConnectionRepository creates a ConnectionRepository backed by the given
// database connection.
func NewConnectionRepository(db DBTX) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Accepted reports whether the provider (by user id) holds an accepted
// connection to the patient (by user id). Missing profiles, missing
// connections, and pending or rejected connections are all reported as
// false; callers translate that into a forbidden error without revealing
// which precondition failed.
func (r *ConnectionRepository) Accepted(ctx context.Context, providerUserID, patientUserID string) (bool, error) {
	var status string
	err := r.db.QueryRow(ctx,
		`SELECT c.status
		 FROM patient_provider_connections c
		 JOIN providers pr ON pr.id = c.provider_id
		 JOIN patients pa ON pa.id = c.patient_id
		 WHERE pr.user_id = $1 AND pa.user_id = $2
		 ORDER BY c.created_at DESC
		 LIMIT 1`,
		providerUserID, patientUserID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check provider connection", err)
	}
	return types.ConnectionStatus(status) == types.ConnectionAccepted, nil
}
