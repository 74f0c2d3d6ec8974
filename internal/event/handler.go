package event

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"livecast/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the events API and the stream-lifecycle webhook using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional
// Metrics. Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// CreateEvent handles POST /events.
// Body: { "slug": "spring-gala", "title": "Spring Gala", "scheduledAt": "..." }.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid create event body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ev, err := h.svc.CreateEvent(req)
	switch {
	case errors.Is(err, ErrInvalidEvent):
		w.WriteHeader(http.StatusBadRequest)
		return
	case errors.Is(err, ErrSlugTaken):
		h.log.Info("event slug conflict", slog.String("slug", req.Slug))
		w.WriteHeader(http.StatusConflict)
		return
	case err != nil:
		h.log.Error("create event failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.log.Info("event created",
		slog.String("slug", ev.Slug),
		slog.String("live_input_id", ev.LiveInputID),
		slog.Time("scheduled_at", ev.ScheduledAt))
	if h.metrics != nil {
		h.metrics.IncEventsCreated()
	}
	writeJSON(w, http.StatusCreated, ev)
}

// GetSnapshot handles GET /events/{slug}: the watch-page polling endpoint.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	snap, err := h.svc.Snapshot(slug)
	switch {
	case errors.Is(err, ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
		return
	case err != nil:
		h.log.Error("snapshot failed", slog.String("slug", slug), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// EndEvent handles POST /events/{slug}/end.
func (h *Handler) EndEvent(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	err := h.svc.EndEvent(slug)
	switch {
	case errors.Is(err, ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
		return
	case err != nil:
		h.log.Error("end event failed", slog.String("slug", slug), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.log.Info("event ended", slog.String("slug", slug))
	w.WriteHeader(http.StatusOK)
}

// SetLimit handles POST /events/{slug}/limit.
// Body: { "limitExceeded": true }.
func (h *Handler) SetLimit(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var body struct {
		LimitExceeded bool `json:"limitExceeded"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	err := h.svc.SetLimitExceeded(slug, body.LimitExceeded)
	switch {
	case errors.Is(err, ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
		return
	case err != nil:
		h.log.Error("set limit failed", slog.String("slug", slug), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.log.Info("limit flag updated", slog.String("slug", slug), slog.Bool("limit_exceeded", body.LimitExceeded))
	w.WriteHeader(http.StatusOK)
}

// StreamHook handles POST /hooks/stream: upstream lifecycle notifications.
// Hooks for unknown live inputs are acknowledged and dropped so the platform
// does not retry them forever.
func (h *Handler) StreamHook(w http.ResponseWriter, r *http.Request) {
	var hook StreamHook
	if err := json.NewDecoder(r.Body).Decode(&hook); err != nil {
		h.log.Debug("invalid webhook body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	err := h.svc.ApplyStreamHook(hook)
	switch {
	case errors.Is(err, ErrNotFound):
		h.log.Warn("webhook for unknown live input",
			slog.String("type", hook.Type),
			slog.String("live_input_id", hook.LiveInputID))
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, ErrUnknownHook):
		h.log.Warn("unknown webhook type", slog.String("type", hook.Type))
		w.WriteHeader(http.StatusBadRequest)
		return
	case err != nil:
		h.log.Error("webhook failed",
			slog.String("type", hook.Type),
			slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.log.Info("webhook applied",
		slog.String("type", hook.Type),
		slog.String("live_input_id", hook.LiveInputID))
	if h.metrics != nil {
		h.metrics.IncStreamWebhooks()
		if hook.Type == HookRecordingReady {
			h.metrics.IncRecordingsReady()
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
