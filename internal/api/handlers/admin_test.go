package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalbrief/internal/batch"
	"vitalbrief/internal/core"
	"vitalbrief/internal/types"
)

type fakePassRunner struct {
	report *batch.PassReport
	err    error
	target time.Time
	kind   types.SummaryKind
}

func (f *fakePassRunner) RunPassFor(ctx context.Context, target time.Time, kind types.SummaryKind) (*batch.PassReport, error) {
	f.target, f.kind = target, kind
	return f.report, f.err
}

type fakeDispatcher struct {
	report *batch.DispatchReport
	err    error
	calls  int
}

func (f *fakeDispatcher) Run(ctx context.Context) (*batch.DispatchReport, error) {
	f.calls++
	return f.report, f.err
}

type fakeMarker struct {
	marked []string
	err    error
}

func (f *fakeMarker) MarkEmailSent(ctx context.Context, summaryID string) error {
	f.marked = append(f.marked, summaryID)
	return f.err
}

var adminActor = types.Actor{ID: "admin-1", Role: types.RoleAdmin}

func newAdminRouter(passes *fakePassRunner, dispatcher *fakeDispatcher, marker *fakeMarker) *chi.Mux {
	h := NewAdminHandler(passes, dispatcher, marker, core.NewValidator(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.now = func() time.Time { return time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func adminRequest(t *testing.T, router *chi.Mux, method, path, body string, actor types.Actor) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(types.WithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	router := newAdminRouter(&fakePassRunner{}, &fakeDispatcher{}, &fakeMarker{})
	rec := adminRequest(t, router, http.MethodPost, "/admin/passes/morning", "", patientActor)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRunMorningPassDefaultsToYesterday(t *testing.T) {
	passes := &fakePassRunner{report: &batch.PassReport{TargetDate: "2026-03-13"}}
	router := newAdminRouter(passes, &fakeDispatcher{}, &fakeMarker{})

	rec := adminRequest(t, router, http.MethodPost, "/admin/passes/morning", "", adminActor)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC), passes.target)
	assert.Equal(t, types.KindMorningBriefing, passes.kind)
}

func TestRunEveningPassDefaultsToToday(t *testing.T) {
	passes := &fakePassRunner{report: &batch.PassReport{}}
	router := newAdminRouter(passes, &fakeDispatcher{}, &fakeMarker{})

	rec := adminRequest(t, router, http.MethodPost, "/admin/passes/evening", "", adminActor)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), passes.target)
	assert.Equal(t, types.KindEveningSummary, passes.kind)
}

func TestRunPassExplicitTargetDate(t *testing.T) {
	passes := &fakePassRunner{report: &batch.PassReport{}}
	router := newAdminRouter(passes, &fakeDispatcher{}, &fakeMarker{})

	rec := adminRequest(t, router, http.MethodPost, "/admin/passes/morning",
		`{"target_date":"2026-02-01"}`, adminActor)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), passes.target)
}

func TestRunPassRejectsBadTargetDate(t *testing.T) {
	passes := &fakePassRunner{report: &batch.PassReport{}}
	router := newAdminRouter(passes, &fakeDispatcher{}, &fakeMarker{})

	rec := adminRequest(t, router, http.MethodPost, "/admin/passes/morning",
		`{"target_date":"02/01/2026"}`, adminActor)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunPassReturnsReport(t *testing.T) {
	passes := &fakePassRunner{report: &batch.PassReport{
		Kind:                types.KindMorningBriefing,
		TargetDate:          "2026-03-13",
		TotalUsersProcessed: 5,
		SummariesCreated:    4,
		UsersWithAlerts:     1,
	}}
	router := newAdminRouter(passes, &fakeDispatcher{}, &fakeMarker{})

	rec := adminRequest(t, router, http.MethodPost, "/admin/passes/morning", "", adminActor)

	var resp struct {
		Data batch.PassReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Data.TotalUsersProcessed)
	assert.Equal(t, 4, resp.Data.SummariesCreated)
	assert.Equal(t, 1, resp.Data.UsersWithAlerts)
}

func TestDispatchBriefings(t *testing.T) {
	dispatcher := &fakeDispatcher{report: &batch.DispatchReport{Scanned: 3, Queued: 3}}
	router := newAdminRouter(&fakePassRunner{}, dispatcher, &fakeMarker{})

	rec := adminRequest(t, router, http.MethodPost, "/admin/dispatch-briefings", "", adminActor)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, dispatcher.calls)
	var resp struct {
		Data batch.DispatchReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Data.Queued)
}

func TestEmailSentCallback(t *testing.T) {
	marker := &fakeMarker{}
	router := newAdminRouter(&fakePassRunner{}, &fakeDispatcher{}, marker)

	rec := adminRequest(t, router, http.MethodPost, "/admin/briefings/s-1/email-sent", "", adminActor)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"s-1"}, marker.marked)
}

func TestEmailSentUnknownSummary(t *testing.T) {
	marker := &fakeMarker{err: types.NewAppError(types.ErrCodeNotFoundSummary, "summary not found", nil)}
	router := newAdminRouter(&fakePassRunner{}, &fakeDispatcher{}, marker)

	rec := adminRequest(t, router, http.MethodPost, "/admin/briefings/s-404/email-sent", "", adminActor)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
