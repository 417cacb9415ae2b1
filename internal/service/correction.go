package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tessierh/psyche/internal/domain"
	"github.com/tessierh/psyche/internal/store"
	"go.uber.org/zap"
)

// ErrBeliefNotFound is returned when a correction targets a belief that
// does not exist. Nothing is mutated in that case.
var ErrBeliefNotFound = errors.New("belief not found")

// CorrectionConfig tunes the exemption policy and distress model.
type CorrectionConfig struct {
	// GraceWindow: corrections this soon after formation carry no distress.
	GraceWindow time.Duration
	// FreeCorrections: this many prior corrections on a belief are free.
	FreeCorrections int
	// ConvictionWeight scales how much conviction adds on top of the
	// maturity base.
	ConvictionWeight float64
}

func DefaultCorrectionConfig() CorrectionConfig {
	return CorrectionConfig{
		GraceWindow:      time.Hour,
		FreeCorrections:  2,
		ConvictionWeight: 0.2,
	}
}

// CorrectionRequest is one user revision of a held belief.
type CorrectionRequest struct {
	BeliefID     uuid.UUID
	Type         domain.CorrectionType
	NewStatement string
	Delete       bool
	SessionID    string
	TurnNumber   int
}

// CorrectionResult is the applied correction plus the engine's response.
type CorrectionResult struct {
	Correction      domain.Correction `json:"correction"`
	Acknowledgement string            `json:"acknowledgement"`
}

// Handler applies corrections: it decides exemption, computes distress for
// non-exempt revisions, mutates the belief, and appends the audit row.
type Handler struct {
	beliefs     domain.BeliefStore
	corrections domain.CorrectionStore
	cfg         CorrectionConfig
	logger      *zap.Logger
	now         func() time.Time
}

func NewHandler(beliefs domain.BeliefStore, corrections domain.CorrectionStore, cfg CorrectionConfig, logger *zap.Logger) *Handler {
	return &Handler{
		beliefs:     beliefs,
		corrections: corrections,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Apply runs the full correction flow. The exemption checks run in order;
// the first that applies wins and no distress is computed.
func (h *Handler) Apply(ctx context.Context, req CorrectionRequest) (CorrectionResult, error) {
	b, err := h.beliefs.GetByID(ctx, req.BeliefID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return CorrectionResult{}, ErrBeliefNotFound
		}
		return CorrectionResult{}, fmt.Errorf("load belief %s: %w", req.BeliefID, err)
	}

	now := h.now()
	exempt, exemptReason, err := h.exemption(ctx, b, req.Type, now)
	if err != nil {
		return CorrectionResult{}, err
	}

	var distress float64
	if !exempt {
		distress = h.distress(b)
	}

	if req.Delete {
		note := fmt.Sprintf("retired by %s correction", req.Type)
		if err := h.beliefs.Retire(ctx, b.ID, note); err != nil {
			return CorrectionResult{}, fmt.Errorf("retire belief %s: %w", b.ID, err)
		}
	} else {
		if err := h.beliefs.UpdateStatement(ctx, b.ID, req.NewStatement, b.CorrectionCount+1); err != nil {
			return CorrectionResult{}, fmt.Errorf("update belief %s: %w", b.ID, err)
		}
	}

	c := domain.Correction{
		ID:           uuid.New(),
		BeliefID:     b.ID,
		Type:         req.Type,
		OldStatement: b.Statement,
		NewStatement: req.NewStatement,
		Deleted:      req.Delete,
		Exempt:       exempt,
		ExemptReason: exemptReason,
		Distress:     distress,
		SessionID:    req.SessionID,
		TurnNumber:   req.TurnNumber,
		CreatedAt:    now,
	}
	if err := h.corrections.Create(ctx, &c); err != nil {
		return CorrectionResult{}, fmt.Errorf("record correction: %w", err)
	}

	h.logger.Info("correction applied",
		zap.String("belief_id", b.ID.String()),
		zap.String("type", string(req.Type)),
		zap.Bool("deleted", req.Delete),
		zap.Bool("exempt", exempt),
		zap.String("exempt_reason", exemptReason),
		zap.Float64("distress", distress))

	return CorrectionResult{
		Correction:      c,
		Acknowledgement: acknowledgement(exempt, distress),
	}, nil
}

// exemption returns whether the correction is free of distress, and why.
func (h *Handler) exemption(ctx context.Context, b *domain.Belief, t domain.CorrectionType, now time.Time) (bool, string, error) {
	if b.InProbation(now) {
		return true, "probation", nil
	}
	if t.AlwaysExempt() {
		return true, "correction_type", nil
	}
	if now.Sub(b.CreatedAt) < h.cfg.GraceWindow {
		return true, "recent_formation", nil
	}
	prior, err := h.corrections.CountByBelief(ctx, b.ID)
	if err != nil {
		return false, "", fmt.Errorf("count prior corrections: %w", err)
	}
	if prior < h.cfg.FreeCorrections {
		return true, "few_prior_corrections", nil
	}
	return false, "", nil
}

// distress is the maturity base plus a conviction-proportional bonus,
// clamped to [0,1]. Stronger and older beliefs hurt more to revise.
func (h *Handler) distress(b *domain.Belief) float64 {
	d := domain.DistressBase(b.Maturity) + (b.Conviction/domain.MaxConviction)*h.cfg.ConvictionWeight
	if d > 1.0 {
		d = 1.0
	}
	return d
}

// acknowledgement maps distress to one of four response tiers.
func acknowledgement(exempt bool, distress float64) string {
	switch {
	case exempt || distress == 0:
		return "Got it, updated."
	case distress < 0.4:
		return "Okay. I've adjusted that."
	case distress < 0.7:
		return "That's a bit of a shift for me, but noted."
	default:
		return "That changes something I held pretty deeply. Give me a moment to sit with it."
	}
}
