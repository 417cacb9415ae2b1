package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tessierh/psyche/internal/domain"
	"go.uber.org/zap"
)

// ConsolidationConfig tunes how candidates merge into the active belief set.
type ConsolidationConfig struct {
	// SimilarityThreshold: keyword overlap at or above this, with matching
	// polarity, reinforces instead of inserting.
	SimilarityThreshold float64
	// ConflictSimilarityThreshold: overlap of the negation-stripped residue
	// at or above this, with opposite polarity, is a conflict. Opposite
	// stances share fewer surface words, so this runs lower than the
	// reinforcement threshold.
	ConflictSimilarityThreshold float64
	// ConflictConvictionFloor: incumbents below this conviction are too
	// weak to contest a conflict. The candidate is treated as having no
	// opponent and falls through to insertion.
	ConflictConvictionFloor float64
	// ProbationWindow sets ProbationEndsAt on freshly inserted beliefs.
	ProbationWindow time.Duration
}

func DefaultConsolidationConfig() ConsolidationConfig {
	return ConsolidationConfig{
		SimilarityThreshold:         0.7,
		ConflictSimilarityThreshold: 0.5,
		ConflictConvictionFloor:     20,
		ProbationWindow:             7 * 24 * time.Hour,
	}
}

// ConsolidationAction is what the engine did with one candidate.
type ConsolidationAction string

const (
	ActionReinforced ConsolidationAction = "reinforced"
	ActionInserted   ConsolidationAction = "inserted"
	ActionSuperseded ConsolidationAction = "superseded"
	ActionRejected   ConsolidationAction = "rejected"
)

// ConsolidationResult reports the fate of one candidate.
type ConsolidationResult struct {
	Action     ConsolidationAction `json:"action"`
	BeliefID   uuid.UUID           `json:"belief_id,omitempty"`
	RetiredID  uuid.UUID           `json:"retired_id,omitempty"`
	LostToID   uuid.UUID           `json:"lost_to_id,omitempty"`
	Statement  string              `json:"statement"`
	Conviction float64             `json:"conviction,omitempty"`
	Similarity float64             `json:"similarity,omitempty"`
}

// Engine merges extracted candidates into the belief set. Each candidate
// lands in exactly one of three buckets: reinforce an existing belief,
// arbitrate a polarity conflict, or insert fresh. No candidate is dropped
// without a recorded result.
type Engine struct {
	beliefs  domain.BeliefStore
	links    domain.CausalLinkStore
	embedder domain.EmbeddingClient
	cfg      ConsolidationConfig
	negation NegationPolicy
	logger   *zap.Logger
	now      func() time.Time
}

func NewEngine(beliefs domain.BeliefStore, links domain.CausalLinkStore, embedder domain.EmbeddingClient, cfg ConsolidationConfig, logger *zap.Logger) *Engine {
	return &Engine{
		beliefs:  beliefs,
		links:    links,
		embedder: embedder,
		cfg:      cfg,
		negation: DefaultNegationPolicy(),
		logger:   logger,
		now:      time.Now,
	}
}

// ConsolidateBatch processes candidates independently. One failing
// candidate does not abort the rest; the error from the first failure is
// returned after the batch completes.
func (e *Engine) ConsolidateBatch(ctx context.Context, observationID string, candidates []domain.Candidate) ([]ConsolidationResult, error) {
	results := make([]ConsolidationResult, 0, len(candidates))
	var firstErr error
	for _, c := range candidates {
		r, err := e.Consolidate(ctx, observationID, c)
		if err != nil {
			e.logger.Error("candidate consolidation failed",
				zap.String("observation_id", observationID),
				zap.String("statement", c.Statement),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, r)
	}
	return results, firstErr
}

// Consolidate routes one candidate. Match and conflict checks run against
// every active belief; the strongest match wins.
func (e *Engine) Consolidate(ctx context.Context, observationID string, c domain.Candidate) (ConsolidationResult, error) {
	active, err := e.beliefs.ListActive(ctx)
	if err != nil {
		return ConsolidationResult{}, fmt.Errorf("list active beliefs: %w", err)
	}

	candPolarity := e.effectivePolarity(c.Statement, c.Polarity)

	var (
		bestMatch    *domain.Belief
		bestMatchSim float64
		bestConf     *domain.Belief
		bestConfSim  float64
	)
	for i := range active {
		b := &active[i]
		beliefPolarity := e.effectivePolarity(b.Statement, b.Polarity)

		if beliefPolarity == candPolarity {
			sim := StatementSimilarity(c.Statement, b.Statement)
			if sim >= e.cfg.SimilarityThreshold && sim > bestMatchSim {
				bestMatch, bestMatchSim = b, sim
			}
			continue
		}

		// Opposite stance: compare what remains once negation markers are
		// stripped from both sides. Only incumbents above the conviction
		// floor get to contest.
		if b.Conviction < e.cfg.ConflictConvictionFloor {
			continue
		}
		sim := StatementSimilarity(e.negation.Strip(c.Statement), e.negation.Strip(b.Statement))
		if sim >= e.cfg.ConflictSimilarityThreshold && sim > bestConfSim {
			bestConf, bestConfSim = b, sim
		}
	}

	if bestMatch != nil {
		return e.reinforce(ctx, observationID, c, bestMatch, bestMatchSim)
	}
	if bestConf != nil {
		return e.arbitrate(ctx, observationID, c, candPolarity, bestConf, bestConfSim)
	}
	return e.insert(ctx, observationID, c, candPolarity)
}

// effectivePolarity reconciles the declared polarity with what the text
// says. A statement that reads negated is treated as negated even when the
// extraction stage tagged it affirmed.
func (e *Engine) effectivePolarity(statement string, declared domain.Polarity) domain.Polarity {
	if e.negation.Detect(statement) {
		return declared.Opposite()
	}
	return declared
}

// reinforce folds the candidate into an existing belief: conviction moves
// toward the candidate score as a running evidence-weighted average.
func (e *Engine) reinforce(ctx context.Context, observationID string, c domain.Candidate, b *domain.Belief, sim float64) (ConsolidationResult, error) {
	newCount := b.EvidenceCount + 1
	newConviction := domain.ClampConviction(
		(b.Conviction*float64(b.EvidenceCount) + c.Confidence) / float64(newCount))

	reason := fmt.Sprintf("reinforced by observation %s (score %.0f, similarity %.2f)", observationID, c.Confidence, sim)
	if err := e.beliefs.UpdateReinforcement(ctx, b.ID, newConviction, newCount, reason); err != nil {
		return ConsolidationResult{}, fmt.Errorf("reinforce belief %s: %w", b.ID, err)
	}
	e.recordLink(ctx, b.ID, observationID, domain.LinkReinforcement)

	e.logger.Info("belief reinforced",
		zap.String("belief_id", b.ID.String()),
		zap.String("matched_statement", b.Statement),
		zap.Float64("similarity", sim),
		zap.Float64("old_conviction", b.Conviction),
		zap.Float64("new_conviction", newConviction),
		zap.Int("evidence_count", newCount))

	return ConsolidationResult{
		Action:     ActionReinforced,
		BeliefID:   b.ID,
		Statement:  b.Statement,
		Conviction: newConviction,
		Similarity: sim,
	}, nil
}

// arbitrate resolves an opposite-polarity conflict by score. The stronger
// side keeps the slot: either the incumbent is retired and the candidate
// inserted, or the candidate is rejected with a note on the incumbent.
func (e *Engine) arbitrate(ctx context.Context, observationID string, c domain.Candidate, polarity domain.Polarity, b *domain.Belief, sim float64) (ConsolidationResult, error) {
	if c.Confidence > b.Conviction {
		note := fmt.Sprintf("superseded by conflicting observation %s (score %.0f vs %.0f)", observationID, c.Confidence, b.Conviction)
		if err := e.beliefs.Retire(ctx, b.ID, note); err != nil {
			return ConsolidationResult{}, fmt.Errorf("retire belief %s: %w", b.ID, err)
		}
		r, err := e.insert(ctx, observationID, c, polarity)
		if err != nil {
			return ConsolidationResult{}, err
		}
		r.Action = ActionSuperseded
		r.RetiredID = b.ID
		r.Similarity = sim

		e.logger.Info("belief superseded",
			zap.String("retired_id", b.ID.String()),
			zap.String("retired_statement", b.Statement),
			zap.String("belief_id", r.BeliefID.String()),
			zap.Float64("similarity", sim),
			zap.Float64("old_conviction", b.Conviction),
			zap.Float64("new_conviction", c.Confidence))
		return r, nil
	}

	e.logger.Info("conflicting candidate rejected",
		zap.String("lost_to", b.ID.String()),
		zap.String("statement", c.Statement),
		zap.Float64("similarity", sim),
		zap.Float64("candidate_score", c.Confidence),
		zap.Float64("incumbent_conviction", b.Conviction))

	return ConsolidationResult{
		Action:     ActionRejected,
		LostToID:   b.ID,
		Statement:  c.Statement,
		Similarity: sim,
	}, nil
}

// insert creates a fresh belief in probation with a single unit of
// evidence. Embedding is best-effort; recall quality degrades without it
// but the belief still lands.
func (e *Engine) insert(ctx context.Context, observationID string, c domain.Candidate, polarity domain.Polarity) (ConsolidationResult, error) {
	now := e.now()
	probationEnds := now.Add(e.cfg.ProbationWindow)

	b := &domain.Belief{
		ID:              uuid.New(),
		Statement:       c.Statement,
		Subject:         c.Subject,
		Holder:          c.Holder,
		Polarity:        polarity,
		Class:           c.Class,
		Conviction:      domain.ClampConviction(c.Confidence),
		EvidenceCount:   1,
		Maturity:        domain.MaturityProbation,
		ValidFrom:       now,
		ProbationEndsAt: &probationEnds,
		Reasoning:       fmt.Sprintf("formed from observation %s", observationID),
	}

	if e.embedder != nil {
		emb, err := e.embedder.Embed(ctx, c.Statement)
		if err != nil {
			e.logger.Warn("embedding failed, inserting without",
				zap.String("statement", c.Statement), zap.Error(err))
		} else {
			b.Embedding = emb
		}
	}

	if err := e.beliefs.Create(ctx, b); err != nil {
		return ConsolidationResult{}, fmt.Errorf("insert belief: %w", err)
	}
	e.recordLink(ctx, b.ID, observationID, domain.LinkFormation)

	e.logger.Info("belief inserted",
		zap.String("belief_id", b.ID.String()),
		zap.String("statement", b.Statement),
		zap.Float64("conviction", b.Conviction))

	return ConsolidationResult{
		Action:     ActionInserted,
		BeliefID:   b.ID,
		Statement:  b.Statement,
		Conviction: b.Conviction,
	}, nil
}

// recordLink writes the audit trail entry. Links are observational; a
// failure is logged but never fails the consolidation.
func (e *Engine) recordLink(ctx context.Context, beliefID uuid.UUID, observationID string, t domain.CausalLinkType) {
	l := &domain.CausalLink{
		ID:            uuid.New(),
		BeliefID:      beliefID,
		ObservationID: observationID,
		Type:          t,
	}
	if err := e.links.Create(ctx, l); err != nil {
		e.logger.Warn("causal link not recorded",
			zap.String("belief_id", beliefID.String()),
			zap.String("observation_id", observationID),
			zap.Error(err))
	}
}
