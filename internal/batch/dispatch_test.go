package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalbrief/internal/types"
)

type mockPending struct {
	rows  []types.DailyHealthSummary
	err   error
	limit int
}

func (m *mockPending) ListPendingBriefings(ctx context.Context, limit int) ([]types.DailyHealthSummary, error) {
	m.limit = limit
	return m.rows, m.err
}

type mockPublisher struct {
	published []BriefingMessage
	failIDs   map[string]error
}

func (m *mockPublisher) Publish(ctx context.Context, msg BriefingMessage) error {
	if err, ok := m.failIDs[msg.SummaryID]; ok {
		return err
	}
	m.published = append(m.published, msg)
	return nil
}

func pendingRow(id, userID string) types.DailyHealthSummary {
	return types.DailyHealthSummary{
		ID:            id,
		UserID:        userID,
		SummaryDate:   time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
		SummaryType:   types.KindMorningBriefing,
		OverallStatus: types.OverallGood,
	}
}

func TestDispatchPublishesPendingBriefings(t *testing.T) {
	pending := &mockPending{rows: []types.DailyHealthSummary{
		pendingRow("s-1", "u-1"),
		pendingRow("s-2", "u-2"),
	}}
	publisher := &mockPublisher{}
	d := NewDispatcher(pending, publisher, 50, nil)
	fixed := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 50, pending.limit)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 2, report.Queued)
	assert.Empty(t, report.Failures)

	require.Len(t, publisher.published, 2)
	msg := publisher.published[0]
	assert.Equal(t, "s-1", msg.SummaryID)
	assert.Equal(t, "u-1", msg.UserID)
	assert.Equal(t, "2026-03-13", msg.SummaryDate)
	assert.Equal(t, types.OverallGood, msg.OverallStatus)
	assert.Equal(t, fixed, msg.QueuedAt)
	assert.NotEmpty(t, msg.TraceID)
}

func TestDispatchSharesOneTraceID(t *testing.T) {
	pending := &mockPending{rows: []types.DailyHealthSummary{
		pendingRow("s-1", "u-1"),
		pendingRow("s-2", "u-2"),
	}}
	publisher := &mockPublisher{}
	d := NewDispatcher(pending, publisher, 0, nil)

	_, err := d.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, publisher.published, 2)
	assert.Equal(t, publisher.published[0].TraceID, publisher.published[1].TraceID)
}

func TestDispatchIsolatesPublishFailures(t *testing.T) {
	pending := &mockPending{rows: []types.DailyHealthSummary{
		pendingRow("s-1", "u-1"),
		pendingRow("s-2", "u-2"),
		pendingRow("s-3", "u-3"),
	}}
	publisher := &mockPublisher{failIDs: map[string]error{
		"s-2": errors.New("queue unavailable"),
	}}
	d := NewDispatcher(pending, publisher, 0, nil)

	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Queued)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "u-2", report.Failures[0].UserID)
}

func TestDispatchDefaultLimit(t *testing.T) {
	pending := &mockPending{}
	d := NewDispatcher(pending, &mockPublisher{}, 0, nil)

	_, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultDispatchBatchLimit, pending.limit)
}

func TestDispatchScanErrorIsFatal(t *testing.T) {
	boom := errors.New("connection refused")
	d := NewDispatcher(&mockPending{err: boom}, &mockPublisher{}, 0, nil)

	_, err := d.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
