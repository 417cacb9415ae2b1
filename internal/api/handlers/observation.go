package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tessierh/psyche/internal/domain"
	"github.com/tessierh/psyche/internal/service"
)

type ObservationHandler struct {
	pipeline *service.Pipeline
}

func NewObservationHandler(pipeline *service.Pipeline) *ObservationHandler {
	return &ObservationHandler{pipeline: pipeline}
}

type ingestRequest struct {
	ObservationID   string `json:"observation_id,omitempty"`
	UserMessage     string `json:"user_message"`
	ThinkingContent string `json:"thinking_content,omitempty"`
	ResponseSummary string `json:"response_summary,omitempty"`
}

type ingestResponse struct {
	ObservationID string                        `json:"observation_id"`
	Decision      domain.Decision               `json:"decision"`
	Results       []service.ConsolidationResult `json:"results,omitempty"`
}

// Ingest accepts one conversational turn and runs it through admission
// and, when approved, immediate extraction.
func (h *ObservationHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		writeError(w, http.StatusBadRequest, "user_message is required")
		return
	}
	if req.ObservationID == "" {
		req.ObservationID = uuid.NewString()
	}

	obs := domain.Observation{
		ID:              req.ObservationID,
		UserMessage:     req.UserMessage,
		ThinkingContent: req.ThinkingContent,
		ResponseSummary: req.ResponseSummary,
	}

	result, err := h.pipeline.HandleObservation(r.Context(), obs)
	if err != nil {
		// Admission decided before the failure; surface what we know.
		if result.Decision.Outcome != "" {
			writeJSON(w, http.StatusAccepted, ingestResponse{
				ObservationID: obs.ID,
				Decision:      result.Decision,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to process observation")
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		ObservationID: obs.ID,
		Decision:      result.Decision,
		Results:       result.Results,
	})
}

type consentRequest struct {
	Approve bool `json:"approve"`
}

// Consent resolves an observation parked for explicit approval.
func (h *ObservationHandler) Consent(w http.ResponseWriter, r *http.Request) {
	observationID := chi.URLParam(r, "id")
	if observationID == "" {
		writeError(w, http.StatusBadRequest, "observation id is required")
		return
	}

	var req consentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.pipeline.Consent(r.Context(), observationID, req.Approve)
	if err != nil {
		if errors.Is(err, service.ErrNoPendingConsent) {
			writeError(w, http.StatusNotFound, "no observation awaiting consent")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve consent")
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		ObservationID: observationID,
		Decision:      result.Decision,
		Results:       result.Results,
	})
}

type drainRequest struct {
	Limit int `json:"limit,omitempty"`
}

// Drain triggers one pass over the deferred extraction queue.
func (h *ObservationHandler) Drain(w http.ResponseWriter, r *http.Request) {
	req := drainRequest{Limit: 10}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 10
	}

	report, err := h.pipeline.Drain(r.Context(), req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "drain failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
