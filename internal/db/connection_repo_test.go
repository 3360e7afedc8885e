package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vitalbrief/internal/types"
)

func connectionRow(status string) *mockRow {
	return &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = status
			return nil
		},
	}
}

func TestConnectionRepository_Accepted_AcceptedConnection(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewConnectionRepository(dbMock)

	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"),
		mock.MatchedBy(func(args []any) bool {
			return len(args) == 2 && args[0] == "provider_1" && args[1] == "patient_1"
		})).Return(connectionRow("accepted"))

	ok, err := repo.Accepted(context.Background(), "provider_1", "patient_1")
	require.NoError(t, err)
	assert.True(t, ok)
	dbMock.AssertExpectations(t)
}

func TestConnectionRepository_Accepted_NonAcceptedStatuses(t *testing.T) {
	for _, status := range []string{"pending", "rejected"} {
		t.Run(status, func(t *testing.T) {
			dbMock := new(mockDBTX)
			repo := NewConnectionRepository(dbMock)

			dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
				Return(connectionRow(status))

			ok, err := repo.Accepted(context.Background(), "provider_1", "patient_1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestConnectionRepository_Accepted_NoConnectionIsFalseNotError(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewConnectionRepository(dbMock)

	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	ok, err := repo.Accepted(context.Background(), "provider_1", "stranger")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnectionRepository_Accepted_DBError(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewConnectionRepository(dbMock)

	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection refused")})

	_, err := repo.Accepted(context.Background(), "provider_1", "patient_1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
