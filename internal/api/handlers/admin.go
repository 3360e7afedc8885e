package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vitalbrief/internal/batch"
	"vitalbrief/internal/core"
	"vitalbrief/internal/types"
)

// PassRunner runs scheduled generation passes on demand. Mirrors the
// concrete batch.Orchestrator methods used here.
type PassRunner interface {
	RunPassFor(ctx context.Context, target time.Time, kind types.SummaryKind) (*batch.PassReport, error)
}

// BriefingDispatcher drains pending morning briefings to the delivery queue.
type BriefingDispatcher interface {
	Run(ctx context.Context) (*batch.DispatchReport, error)
}

// EmailMarker records a confirmed briefing delivery.
type EmailMarker interface {
	MarkEmailSent(ctx context.Context, summaryID string) error
}

// RunPassRequest is the request body for the admin pass endpoints.
// TargetDate overrides the pass's default date for backfills.
type RunPassRequest struct {
	TargetDate *string `json:"target_date,omitempty"`
}

// AdminHandler exposes the operational surface: running passes manually,
// draining the briefing queue, and the delivery worker's sent callback.
// The whole group is mounted behind the admin role.
type AdminHandler struct {
	passes     PassRunner
	dispatcher BriefingDispatcher
	marker     EmailMarker
	validator  *core.Validator
	logger     *slog.Logger
	now        func() time.Time
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(passes PassRunner, dispatcher BriefingDispatcher, marker EmailMarker, v *core.Validator, l *slog.Logger) *AdminHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AdminHandler{
		passes:     passes,
		dispatcher: dispatcher,
		marker:     marker,
		validator:  v,
		logger:     l,
		now:        time.Now,
	}
}

// RegisterRoutes mounts the admin routes.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(core.RequireRole(types.RoleAdmin))
		r.Post("/passes/morning", h.RunMorningPass)
		r.Post("/passes/evening", h.RunEveningPass)
		r.Post("/dispatch-briefings", h.DispatchBriefings)
		r.Post("/briefings/{summaryID}/email-sent", h.EmailSent)
	})
}

// RunMorningPass handles POST /v1/admin/passes/morning. Without an explicit
// target_date the pass covers yesterday.
func (h *AdminHandler) RunMorningPass(w http.ResponseWriter, r *http.Request) {
	h.runPass(w, r, batch.TaskMorningBriefing)
}

// RunEveningPass handles POST /v1/admin/passes/evening. Without an explicit
// target_date the pass covers today.
func (h *AdminHandler) RunEveningPass(w http.ResponseWriter, r *http.Request) {
	h.runPass(w, r, batch.TaskEveningSummary)
}

func (h *AdminHandler) runPass(w http.ResponseWriter, r *http.Request, task batch.TaskType) {
	var req RunPassRequest
	if r.ContentLength > 0 {
		if err := core.DecodeJSON(w, r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	payload := batch.SummaryTaskPayload{Task: task, TargetDate: req.TargetDate}
	target, err := payload.ResolveTarget(h.now().UTC())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	kind, _ := task.Kind()

	report, err := h.passes.RunPassFor(r.Context(), target, kind)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}

// DispatchBriefings handles POST /v1/admin/dispatch-briefings.
func (h *AdminHandler) DispatchBriefings(w http.ResponseWriter, r *http.Request) {
	report, err := h.dispatcher.Run(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}

// EmailSent handles POST /v1/admin/briefings/{summaryID}/email-sent, the
// delivery worker's callback after an email actually goes out. Marking here
// rather than at dispatch time keeps at-least-once delivery: a summary lost
// between queue and inbox stays pending and is re-dispatched.
func (h *AdminHandler) EmailSent(w http.ResponseWriter, r *http.Request) {
	summaryID := chi.URLParam(r, "summaryID")
	if summaryID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "summary ID is required", nil))
		return
	}

	if err := h.marker.MarkEmailSent(r.Context(), summaryID); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "briefing marked as emailed", "summary_id", summaryID)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"summary_id": summaryID, "status": "email_sent"}})
}
