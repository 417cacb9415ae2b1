package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tessierh/psyche/internal/domain"
	"github.com/tessierh/psyche/internal/store"
	"go.uber.org/zap"
)

// ErrNoPendingConsent is returned when a consent reply references an
// observation that is not parked.
var ErrNoPendingConsent = errors.New("no observation awaiting consent")

// PipelineConfig carries the cross-cutting tunables the pipeline needs
// beyond what its components already own.
type PipelineConfig struct {
	// CostTolerance mirrors the admission tolerance for drain affordability.
	CostTolerance int
	// RecoveryInterval and RecoveryAmount describe the background recovery
	// cadence, used only to estimate time to full capacity.
	RecoveryInterval time.Duration
	RecoveryAmount   int
	// HighPriorityFloor: queue entries at or above this count as urgent in
	// status reporting.
	HighPriorityFloor int
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		CostTolerance:     5,
		RecoveryInterval:  10 * time.Minute,
		RecoveryAmount:    5,
		HighPriorityFloor: 8,
	}
}

// Pipeline is the engine's front door: it runs admission, pays for and
// performs extraction, consolidates the results, and manages the deferred
// queue and consent flow.
type Pipeline struct {
	governor     *Governor
	admission    *AdmissionController
	orchestrator *Orchestrator
	engine       *Engine
	tracker      *Tracker
	queue        domain.QueueStore
	cfg          PipelineConfig
	logger       *zap.Logger
}

func NewPipeline(
	governor *Governor,
	admission *AdmissionController,
	orchestrator *Orchestrator,
	engine *Engine,
	tracker *Tracker,
	queue domain.QueueStore,
	cfg PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		governor:     governor,
		admission:    admission,
		orchestrator: orchestrator,
		engine:       engine,
		tracker:      tracker,
		queue:        queue,
		cfg:          cfg,
		logger:       logger,
	}
}

// ObservationResult is what one observation produced end to end.
type ObservationResult struct {
	Decision domain.Decision       `json:"decision"`
	Results  []ConsolidationResult `json:"results,omitempty"`
}

// HandleObservation runs the full conversational path: admission first,
// then immediate extraction when approved. Deferred and skipped work has
// already been queued by admission; consent requests wait for a reply.
func (p *Pipeline) HandleObservation(ctx context.Context, obs domain.Observation) (ObservationResult, error) {
	decision, err := p.admission.Evaluate(ctx, obs)
	if err != nil {
		return ObservationResult{Decision: decision}, err
	}
	if decision.Outcome != domain.DecisionExtractNow {
		return ObservationResult{Decision: decision}, nil
	}

	results, err := p.process(ctx, obs, decision.Cost, decision.Impact)
	if err != nil {
		return ObservationResult{Decision: decision}, err
	}
	return ObservationResult{Decision: decision, Results: results}, nil
}

// Consent resolves a parked observation. Approval pays for and runs the
// extraction immediately regardless of current capacity; the user asked
// for it. Decline finalizes the entry and logs a decline event.
func (p *Pipeline) Consent(ctx context.Context, observationID string, approve bool) (ObservationResult, error) {
	entry, err := p.queue.GetPendingConsent(ctx, observationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ObservationResult{}, ErrNoPendingConsent
		}
		return ObservationResult{}, fmt.Errorf("load pending consent: %w", err)
	}

	if !approve {
		if err := p.queue.MarkDeclined(ctx, entry.ID); err != nil {
			return ObservationResult{}, fmt.Errorf("decline entry %s: %w", entry.ID, err)
		}
		if err := p.governor.RecordDecline(ctx, "consent declined for observation "+observationID); err != nil {
			p.logger.Warn("decline event not recorded", zap.Error(err))
		}
		return ObservationResult{Decision: domain.Decision{
			Outcome: domain.DecisionSkip,
			Reason:  domain.ReasonConsentDeclined,
		}}, nil
	}

	if err := p.queue.MarkProcessed(ctx, entry.ID); err != nil {
		return ObservationResult{}, fmt.Errorf("mark entry %s processed: %w", entry.ID, err)
	}

	decision := domain.Decision{
		Outcome: domain.DecisionExtractNow,
		Reason:  domain.ReasonApproved,
		Cost:    entry.EstimatedCost,
		Impact:  entry.Impact,
	}
	results, err := p.process(ctx, entry.Observation, entry.EstimatedCost, entry.Impact)
	if err != nil {
		return ObservationResult{Decision: decision}, err
	}
	return ObservationResult{Decision: decision, Results: results}, nil
}

// process pays for an extraction, runs both model stages, and consolidates
// whatever came back. Failures before or during extraction are transient:
// the observation is pushed back onto the queue for the next drain cycle.
// Energy already spent is not refunded; the attempt cost real work.
func (p *Pipeline) process(ctx context.Context, obs domain.Observation, cost int, impact domain.Impact) ([]ConsolidationResult, error) {
	if _, err := p.governor.Spend(ctx, cost, "extraction for observation "+obs.ID); err != nil {
		// No model work happened yet. The observation goes back on the
		// queue so a later pass can retry it.
		if rqErr := p.admission.Requeue(ctx, obs, impact, cost); rqErr != nil {
			return nil, fmt.Errorf("requeue after spend failure: %w", rqErr)
		}
		return nil, fmt.Errorf("spend for observation %s: %w", obs.ID, err)
	}
	p.admission.RecordExtraction(time.Now())

	candidates, err := p.orchestrator.Extract(ctx, obs)
	if err != nil {
		p.logger.Warn("extraction failed, requeueing",
			zap.String("observation_id", obs.ID), zap.Error(err))
		if rqErr := p.admission.Requeue(ctx, obs, impact, cost); rqErr != nil {
			return nil, fmt.Errorf("requeue after extraction failure: %w", rqErr)
		}
		return nil, fmt.Errorf("extract observation %s: %w", obs.ID, err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	results, err := p.engine.ConsolidateBatch(ctx, obs.ID, candidates)
	if err != nil {
		// Partial consolidation is still progress; surface results with
		// the error.
		return results, err
	}
	return results, nil
}

// DrainReport summarizes one pass over the deferred queue.
type DrainReport struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// Drain works the deferred queue in priority order while capacity lasts.
// The pass stops at the batch cap, at queue exhaustion, or as soon as the
// highest-priority entry is unaffordable. Failed extractions are finalized
// and re-enqueued, so each entry is attempted at most once per pass.
func (p *Pipeline) Drain(ctx context.Context, batchCap int) (DrainReport, error) {
	var report DrainReport
	failed := make(map[string]bool)
	for i := 0; i < batchCap; i++ {
		entry, err := p.queue.NextProcessable(ctx)
		if err != nil {
			return report, fmt.Errorf("next queue entry: %w", err)
		}
		if entry == nil {
			break
		}

		// A failed entry reappears as a fresh row at the same priority.
		// Seeing it again means the pass has wrapped; leave the retry to
		// the next cycle.
		if failed[entry.Observation.ID] {
			break
		}

		if entry.EstimatedCost > p.governor.Energy()+p.cfg.CostTolerance {
			p.logger.Debug("drain stopped, head entry unaffordable",
				zap.Int("cost", entry.EstimatedCost),
				zap.Int("energy", p.governor.Energy()))
			break
		}

		if err := p.queue.MarkProcessed(ctx, entry.ID); err != nil {
			return report, fmt.Errorf("mark entry %s processed: %w", entry.ID, err)
		}

		if _, err := p.process(ctx, entry.Observation, entry.EstimatedCost, entry.Impact); err != nil {
			report.Failed++
			failed[entry.Observation.ID] = true
			continue
		}
		report.Processed++
	}

	remaining, err := p.queue.CountUnprocessed(ctx)
	if err != nil {
		return report, fmt.Errorf("count queue: %w", err)
	}
	report.Remaining = remaining

	if report.Processed > 0 || report.Failed > 0 {
		p.logger.Info("queue drained",
			zap.Int("processed", report.Processed),
			zap.Int("failed", report.Failed),
			zap.Int("remaining", report.Remaining))
	}
	return report, nil
}

// Sweep runs one maturation pass on demand.
func (p *Pipeline) Sweep(ctx context.Context) (SweepResult, error) {
	return p.tracker.Sweep(ctx)
}

// StatusReport is the engine's self-description for the caller.
type StatusReport struct {
	Energy             int                  `json:"energy"`
	State              domain.ResourceState `json:"state"`
	Feeling            string               `json:"feeling"`
	CanProcess         bool                 `json:"can_process"`
	QueuedExtractions  int                  `json:"queued_extractions"`
	HighPriorityQueued int                  `json:"high_priority_queued"`
	RecoveryEstimate   string               `json:"recovery_estimate,omitempty"`
}

// Status reports current capacity, the mood word derived from it, and
// queue depth.
func (p *Pipeline) Status(ctx context.Context) (StatusReport, error) {
	energy := p.governor.Energy()
	state := p.governor.State()

	queued, err := p.queue.CountUnprocessed(ctx)
	if err != nil {
		return StatusReport{}, fmt.Errorf("count queue: %w", err)
	}
	urgent, err := p.queue.CountUnprocessedAbovePriority(ctx, p.cfg.HighPriorityFloor)
	if err != nil {
		return StatusReport{}, fmt.Errorf("count urgent queue: %w", err)
	}

	return StatusReport{
		Energy:             energy,
		State:              state,
		Feeling:            state.Feeling(),
		CanProcess:         state != domain.StateCritical,
		QueuedExtractions:  queued,
		HighPriorityQueued: urgent,
		RecoveryEstimate:   p.recoveryEstimate(energy),
	}, nil
}

// recoveryEstimate projects time back to full capacity at the configured
// recovery cadence. Empty when already full or recovery is disabled.
func (p *Pipeline) recoveryEstimate(energy int) string {
	deficit := domain.MaxEnergy - energy
	if deficit <= 0 || p.cfg.RecoveryAmount <= 0 || p.cfg.RecoveryInterval <= 0 {
		return ""
	}
	ticks := (deficit + p.cfg.RecoveryAmount - 1) / p.cfg.RecoveryAmount
	return (time.Duration(ticks) * p.cfg.RecoveryInterval).String()
}
