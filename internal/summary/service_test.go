package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalbrief/internal/types"
)

type mockStore struct {
	upserted   *types.DailyHealthSummary
	upsertErr  error
	byDate     *types.DailyHealthSummary
	byDateErr  error
	ranged     []types.DailyHealthSummary
	rangedErr  error
	markedID   string
	markedAt   time.Time
	markErr    error
	lastUserID string
}

func (m *mockStore) Upsert(ctx context.Context, s *types.DailyHealthSummary) error {
	m.upserted = s
	return m.upsertErr
}

func (m *mockStore) GetByDate(ctx context.Context, userID string, day time.Time, kind *types.SummaryKind) (*types.DailyHealthSummary, error) {
	m.lastUserID = userID
	return m.byDate, m.byDateErr
}

func (m *mockStore) ListRange(ctx context.Context, userID string, start, end time.Time, kind *types.SummaryKind) ([]types.DailyHealthSummary, error) {
	m.lastUserID = userID
	return m.ranged, m.rangedErr
}

func (m *mockStore) MarkEmailSent(ctx context.Context, id string, at time.Time) error {
	m.markedID = id
	m.markedAt = at
	return m.markErr
}

type mockConns struct {
	accepted bool
	err      error
	calls    int
}

func (m *mockConns) Accepted(ctx context.Context, providerUserID, patientUserID string) (bool, error) {
	m.calls++
	return m.accepted, m.err
}

func newTestService(store *mockStore, conns *mockConns, readings *stubReadings) *Service {
	calc := newTestCalculator(readings, &stubRanges{set: fullRanges()})
	return NewService(calc, store, conns, nil)
}

func TestGetSummaryAbsentIsNilNotError(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store, &mockConns{}, &stubReadings{})

	got, err := svc.GetSummary(context.Background(), "user-1", testDay, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetRangeRejectsInvertedDates(t *testing.T) {
	svc := newTestService(&mockStore{}, &mockConns{}, &stubReadings{})

	_, err := svc.GetRange(context.Background(), "user-1", testDay, testDay.AddDate(0, 0, -1), nil)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidDateRange, appErr.Code)
}

func TestGetRangeSameDayAllowed(t *testing.T) {
	store := &mockStore{ranged: []types.DailyHealthSummary{{ID: "s-1"}}}
	svc := newTestService(store, &mockConns{}, &stubReadings{})

	got, err := svc.GetRange(context.Background(), "user-1", testDay, testDay, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRegeneratePersistsComputedRow(t *testing.T) {
	store := &mockStore{}
	readings := &stubReadings{
		day: []types.BiomarkerReading{reading(types.BiomarkerHeartRate, 70)},
	}
	svc := newTestService(store, &mockConns{}, readings)

	row, err := svc.Regenerate(context.Background(), "user-1", testDay, types.KindMorningBriefing)
	require.NoError(t, err)

	require.NotNil(t, store.upserted)
	assert.Same(t, store.upserted, row)
	assert.Equal(t, "user-1", row.UserID)
	assert.Equal(t, testDay, row.SummaryDate)
	assert.Equal(t, types.KindMorningBriefing, row.SummaryType)
	assert.Equal(t, 1, row.TotalReadings)
	assert.Equal(t, types.OverallGood, row.OverallStatus)
}

func TestRegenerateNoDataDoesNotWrite(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store, &mockConns{}, &stubReadings{})

	_, err := svc.Regenerate(context.Background(), "user-1", testDay, types.KindEveningSummary)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNoDataForDate, appErr.Code)
	assert.Nil(t, store.upserted)
}

func TestProviderGetSummaryRequiresAcceptedConnection(t *testing.T) {
	store := &mockStore{byDate: &types.DailyHealthSummary{ID: "s-1"}}
	conns := &mockConns{accepted: false}
	svc := newTestService(store, conns, &stubReadings{})

	got, err := svc.ProviderGetSummary(context.Background(), "provider-1", "patient-1", testDay, nil)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodePermissionNoConnection, appErr.Code)
	assert.Nil(t, got)
	// The store must not have been consulted; the gate fails first.
	assert.Empty(t, store.lastUserID)
}

func TestProviderGetSummaryAcceptedReadsPatient(t *testing.T) {
	store := &mockStore{byDate: &types.DailyHealthSummary{ID: "s-1", UserID: "patient-1"}}
	conns := &mockConns{accepted: true}
	svc := newTestService(store, conns, &stubReadings{})

	got, err := svc.ProviderGetSummary(context.Background(), "provider-1", "patient-1", testDay, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "patient-1", store.lastUserID)
	assert.Equal(t, 1, conns.calls)
}

func TestProviderGetRangeGateErrorPropagates(t *testing.T) {
	boom := errors.New("connection lookup failed")
	svc := newTestService(&mockStore{}, &mockConns{err: boom}, &stubReadings{})

	_, err := svc.ProviderGetRange(context.Background(), "provider-1", "patient-1", testDay, testDay, nil)
	assert.ErrorIs(t, err, boom)
}

func TestMarkEmailSentUsesClock(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store, &mockConns{}, &stubReadings{})
	fixed := time.Date(2026, 3, 15, 6, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	require.NoError(t, svc.MarkEmailSent(context.Background(), "s-1"))
	assert.Equal(t, "s-1", store.markedID)
	assert.Equal(t, fixed, store.markedAt)
}
