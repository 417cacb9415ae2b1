package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tessierh/psyche/internal/domain"
	"github.com/tessierh/psyche/internal/service"
	"github.com/tessierh/psyche/internal/store"
)

type BeliefHandler struct {
	beliefs     domain.BeliefStore
	corrections domain.CorrectionStore
	links       domain.CausalLinkStore
	handler     *service.Handler
	tracker     *service.Tracker
	embedder    domain.EmbeddingClient
}

func NewBeliefHandler(
	beliefs domain.BeliefStore,
	corrections domain.CorrectionStore,
	links domain.CausalLinkStore,
	handler *service.Handler,
	tracker *service.Tracker,
	embedder domain.EmbeddingClient,
) *BeliefHandler {
	return &BeliefHandler{
		beliefs:     beliefs,
		corrections: corrections,
		links:       links,
		handler:     handler,
		tracker:     tracker,
		embedder:    embedder,
	}
}

// List returns beliefs, active only by default. ?include_retired=true adds
// superseded ones; ?limit caps the result.
func (h *BeliefHandler) List(w http.ResponseWriter, r *http.Request) {
	includeRetired := r.URL.Query().Get("include_retired") == "true"
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	beliefs, err := h.beliefs.List(r.Context(), includeRetired, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list beliefs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"beliefs": beliefs, "count": len(beliefs)})
}

func (h *BeliefHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	b, err := h.beliefs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "belief not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch belief")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type correctionRequest struct {
	Type         string `json:"type"`
	NewStatement string `json:"new_statement,omitempty"`
	Delete       bool   `json:"delete,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	TurnNumber   int    `json:"turn_number,omitempty"`
}

// Correct applies a user revision to a belief.
func (h *BeliefHandler) Correct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.ValidCorrectionType(req.Type) {
		writeError(w, http.StatusBadRequest, "invalid correction type")
		return
	}
	if !req.Delete && strings.TrimSpace(req.NewStatement) == "" {
		writeError(w, http.StatusBadRequest, "new_statement is required unless deleting")
		return
	}

	result, err := h.handler.Apply(r.Context(), service.CorrectionRequest{
		BeliefID:     id,
		Type:         domain.CorrectionType(req.Type),
		NewStatement: req.NewStatement,
		Delete:       req.Delete,
		SessionID:    req.SessionID,
		TurnNumber:   req.TurnNumber,
	})
	if err != nil {
		if errors.Is(err, service.ErrBeliefNotFound) {
			writeError(w, http.StatusNotFound, "belief not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to apply correction")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Corrections lists the correction history of a belief.
func (h *BeliefHandler) Corrections(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	corrections, err := h.corrections.ListByBelief(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list corrections")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"corrections": corrections, "count": len(corrections)})
}

// Links returns the causal audit trail tying a belief to the observations
// that formed and reinforced it.
func (h *BeliefHandler) Links(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	links, err := h.links.ListByBelief(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list links")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": links, "count": len(links)})
}

type recallRequest struct {
	Query     string  `json:"query"`
	Limit     int     `json:"limit,omitempty"`
	Threshold float32 `json:"threshold,omitempty"`
}

// Recall runs embedding similarity search over active beliefs. Unavailable
// when no embedding provider is configured.
func (h *BeliefHandler) Recall(w http.ResponseWriter, r *http.Request) {
	if h.embedder == nil {
		writeError(w, http.StatusServiceUnavailable, "recall requires an embedding provider")
		return
	}

	var req recallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit <= 0 || req.Limit > 50 {
		req.Limit = 10
	}
	if req.Threshold <= 0 {
		req.Threshold = 0.5
	}

	embedding, err := h.embedder.Embed(r.Context(), req.Query)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to embed query")
		return
	}

	matches, err := h.beliefs.FindSimilar(r.Context(), embedding, req.Threshold, req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "recall failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"beliefs": matches, "count": len(matches)})
}

// Sweep triggers one maturation pass on demand.
func (h *BeliefHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.tracker.Sweep(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
