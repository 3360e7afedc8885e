// Package handlers contains the HTTP handler implementations for the daily
// summary API. Handlers depend on locally-defined service interfaces so tests
// inject fakes without touching the concrete service wiring.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vitalbrief/internal/core"
	"vitalbrief/internal/types"
)

// SummaryService is the read and regenerate surface the summary handler
// depends on. Mirrors the concrete summary.Service methods used here.
type SummaryService interface {
	GetSummary(ctx context.Context, userID string, day time.Time, kind *types.SummaryKind) (*types.DailyHealthSummary, error)
	GetRange(ctx context.Context, userID string, start, end time.Time, kind *types.SummaryKind) ([]types.DailyHealthSummary, error)
	Regenerate(ctx context.Context, userID string, day time.Time, kind types.SummaryKind) (*types.DailyHealthSummary, error)
	ProviderGetSummary(ctx context.Context, providerUserID, patientUserID string, day time.Time, kind *types.SummaryKind) (*types.DailyHealthSummary, error)
	ProviderGetRange(ctx context.Context, providerUserID, patientUserID string, start, end time.Time, kind *types.SummaryKind) ([]types.DailyHealthSummary, error)
}

// RegenerateRequest is the request body for POST /v1/summaries/{date}/regenerate.
type RegenerateRequest struct {
	SummaryType string `json:"summary_type" validate:"required,oneof=morning_briefing evening_summary"`
}

// SummaryHandler serves patients' own summaries and provider-proxied reads.
type SummaryHandler struct {
	service   SummaryService
	validator *core.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewSummaryHandler creates a SummaryHandler.
func NewSummaryHandler(service SummaryService, v *core.Validator, l *slog.Logger) *SummaryHandler {
	if l == nil {
		l = slog.Default()
	}
	return &SummaryHandler{
		service:   service,
		validator: v,
		logger:    l,
		now:       time.Now,
	}
}

// RegisterRoutes mounts the summary routes.
func (h *SummaryHandler) RegisterRoutes(r chi.Router) {
	r.Route("/summaries", func(r chi.Router) {
		r.Get("/today", h.GetToday)
		r.Get("/range", h.GetRange)
		r.Get("/export", h.Export)
		r.Get("/{date}", h.GetByDate)
		r.Post("/{date}/regenerate", h.Regenerate)

		r.Route("/patient/{patientID}", func(r chi.Router) {
			r.Use(core.RequireRole(types.RoleProvider, types.RoleAdmin))
			r.Get("/today", h.ProviderGetToday)
			r.Get("/range", h.ProviderGetRange)
			r.Get("/{date}", h.ProviderGetByDate)
		})
	})
}

// GetToday handles GET /v1/summaries/today. An absent summary is a normal
// outcome: the response carries explicit null data, not an error.
func (h *SummaryHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthActorMissing, "no authenticated actor", nil))
		return
	}

	kind, err := parseKindParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	s, err := h.service.GetSummary(r.Context(), actor.ID, types.DayOf(h.now().UTC()), kind)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	writeSummary(w, r, s)
}

// GetByDate handles GET /v1/summaries/{date}.
func (h *SummaryHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthActorMissing, "no authenticated actor", nil))
		return
	}

	day, err := parseDateParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	kind, err := parseKindParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	s, err := h.service.GetSummary(r.Context(), actor.ID, day, kind)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	writeSummary(w, r, s)
}

// GetRange handles GET /v1/summaries/range?start_date=...&end_date=...
func (h *SummaryHandler) GetRange(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthActorMissing, "no authenticated actor", nil))
		return
	}

	start, end, kind, err := parseRangeParams(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	rows, err := h.service.GetRange(r.Context(), actor.ID, start, end, kind)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rows})
}

// Regenerate handles POST /v1/summaries/{date}/regenerate. It recomputes the
// summary from current readings and replaces the stored row; a regenerated
// morning briefing is re-queued for email delivery.
func (h *SummaryHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthActorMissing, "no authenticated actor", nil))
		return
	}

	day, err := parseDateParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req RegenerateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	s, err := h.service.Regenerate(r.Context(), actor.ID, day, types.SummaryKind(req.SummaryType))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: s})
}

// ProviderGetToday handles GET /v1/summaries/patient/{patientID}/today.
func (h *SummaryHandler) ProviderGetToday(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthActorMissing, "no authenticated actor", nil))
		return
	}
	patientID := chi.URLParam(r, "patientID")
	if patientID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "patient ID is required", nil))
		return
	}

	kind, err := parseKindParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	s, err := h.service.ProviderGetSummary(r.Context(), actor.ID, patientID, types.DayOf(h.now().UTC()), kind)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	writeSummary(w, r, s)
}

// ProviderGetByDate handles GET /v1/summaries/patient/{patientID}/{date}.
func (h *SummaryHandler) ProviderGetByDate(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthActorMissing, "no authenticated actor", nil))
		return
	}
	patientID := chi.URLParam(r, "patientID")
	if patientID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "patient ID is required", nil))
		return
	}

	day, err := parseDateParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	kind, err := parseKindParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	s, err := h.service.ProviderGetSummary(r.Context(), actor.ID, patientID, day, kind)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	writeSummary(w, r, s)
}

// ProviderGetRange handles GET /v1/summaries/patient/{patientID}/range.
func (h *SummaryHandler) ProviderGetRange(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthActorMissing, "no authenticated actor", nil))
		return
	}
	patientID := chi.URLParam(r, "patientID")
	if patientID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "patient ID is required", nil))
		return
	}

	start, end, kind, err := parseRangeParams(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	rows, err := h.service.ProviderGetRange(r.Context(), actor.ID, patientID, start, end, kind)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rows})
}

// --- Shared parsing helpers ---

func writeSummary(w http.ResponseWriter, r *http.Request, s *types.DailyHealthSummary) {
	if s == nil {
		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: nil})
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: s})
}

func parseDateParam(r *http.Request) (time.Time, error) {
	raw := chi.URLParam(r, "date")
	day, err := types.ParseDay(raw)
	if err != nil {
		return time.Time{}, types.NewAppError(types.ErrCodeValidationInvalidDate,
			"date must be formatted YYYY-MM-DD", err).
			WithDetails(map[string]any{"date": raw})
	}
	return day, nil
}

// parseKindParam reads the optional ?type= query parameter.
func parseKindParam(r *http.Request) (*types.SummaryKind, error) {
	raw := r.URL.Query().Get("type")
	if raw == "" {
		return nil, nil
	}
	kind := types.SummaryKind(raw)
	if !kind.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidKind,
			"type must be morning_briefing or evening_summary", nil).
			WithDetails(map[string]any{"type": raw})
	}
	return &kind, nil
}

func parseRangeParams(r *http.Request) (start, end time.Time, kind *types.SummaryKind, err error) {
	q := r.URL.Query()

	startRaw := q.Get("start_date")
	endRaw := q.Get("end_date")
	if startRaw == "" || endRaw == "" {
		return time.Time{}, time.Time{}, nil, types.NewAppError(types.ErrCodeValidationMissingField,
			"start_date and end_date query parameters are required", nil)
	}

	start, err = types.ParseDay(startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, nil, types.NewAppError(types.ErrCodeValidationInvalidDate,
			"start_date must be formatted YYYY-MM-DD", err)
	}
	end, err = types.ParseDay(endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, nil, types.NewAppError(types.ErrCodeValidationInvalidDate,
			"end_date must be formatted YYYY-MM-DD", err)
	}

	kind, err = parseKindParam(r)
	if err != nil {
		return time.Time{}, time.Time{}, nil, err
	}
	return start, end, kind, nil
}
