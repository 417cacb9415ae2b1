package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tessierh/psyche/internal/domain"
	"github.com/tessierh/psyche/internal/service"
)

type StatusHandler struct {
	pipeline *service.Pipeline
	governor *service.Governor
	events   domain.ResourceEventStore
}

func NewStatusHandler(pipeline *service.Pipeline, governor *service.Governor, events domain.ResourceEventStore) *StatusHandler {
	return &StatusHandler{pipeline: pipeline, governor: governor, events: events}
}

// Status reports current capacity, mood, and queue depth.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.pipeline.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Events returns recent rows of the resource audit log.
func (h *StatusHandler) Events(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := h.events.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// Stats aggregates the resource log over a trailing window, 24h by default.
func (h *StatusHandler) Stats(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if s := r.URL.Query().Get("window"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = d
	}

	stats, err := h.events.Stats(r.Context(), time.Now().Add(-window))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to aggregate stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Reset restores capacity to full. Administrative escape hatch.
func (h *StatusHandler) Reset(w http.ResponseWriter, r *http.Request) {
	energy, err := h.governor.Reset(r.Context(), "administrative reset")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"energy": energy})
}
