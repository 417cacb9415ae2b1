package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tessierh/psyche/internal/domain"
	"go.uber.org/zap"
)

// AdmissionConfig tunes the pre-flight policy. Orderings, not the values,
// are the contract.
type AdmissionConfig struct {
	// CriticalFloor: below this energy, nothing is processed.
	CriticalFloor int
	// HeavyTopicThreshold: below this energy, high-impact observations
	// require explicit consent.
	HeavyTopicThreshold int
	// CostTolerance: estimated cost may exceed energy by this much before
	// the observation is deferred.
	CostTolerance int
	// HourlyCeiling caps extractions per trailing hour.
	HourlyCeiling int
}

func DefaultAdmissionConfig() AdmissionConfig {
	return AdmissionConfig{
		CriticalFloor:       5,
		HeavyTopicThreshold: 50,
		CostTolerance:       5,
		HourlyCeiling:       10,
	}
}

// AdmissionController decides whether and when a proposed unit of work is
// processed. It owns the extraction queue and the trailing-hour rate
// window but never performs extraction itself.
type AdmissionController struct {
	governor *Governor
	queue    domain.QueueStore
	cfg      AdmissionConfig
	logger   *zap.Logger

	windowMu sync.Mutex
	window   []time.Time
}

func NewAdmissionController(governor *Governor, queue domain.QueueStore, cfg AdmissionConfig, logger *zap.Logger) *AdmissionController {
	return &AdmissionController{
		governor: governor,
		queue:    queue,
		cfg:      cfg,
		logger:   logger,
	}
}

// Evaluate runs the admission policy in strict priority order. Trivial
// content short-circuits before any resource interaction; everything else
// is judged against current capacity, the rate window, and impact.
func (c *AdmissionController) Evaluate(ctx context.Context, obs domain.Observation) (domain.Decision, error) {
	if c.governor.IsTrivial(obs) {
		return domain.Decision{
			Outcome: domain.DecisionSkip,
			Reason:  domain.ReasonTrivialContent,
			Cost:    0,
		}, nil
	}

	energy := c.governor.Energy()
	if energy < c.cfg.CriticalFloor {
		d := domain.Decision{
			Outcome: domain.DecisionSkip,
			Reason:  domain.ReasonCriticallyLow,
			Impact:  c.governor.EstimateImpact(obs),
			Cost:    c.governor.EstimateCost(obs),
		}
		if err := c.enqueue(ctx, obs, d); err != nil {
			return d, err
		}
		return d, nil
	}

	// Rate limiting is silent: the caller sees an ordinary deferral.
	if c.extractionsInLastHour(time.Now()) >= c.cfg.HourlyCeiling {
		d := domain.Decision{
			Outcome: domain.DecisionDefer,
			Reason:  domain.ReasonRateLimited,
			Impact:  c.governor.EstimateImpact(obs),
			Cost:    c.governor.EstimateCost(obs),
		}
		if err := c.enqueue(ctx, obs, d); err != nil {
			return d, err
		}
		return d, nil
	}

	impact := c.governor.EstimateImpact(obs)
	cost := c.governor.EstimateCost(obs)

	if impact == domain.ImpactHigh && energy < c.cfg.HeavyTopicThreshold {
		d := domain.Decision{
			Outcome: domain.DecisionAskConsent,
			Reason:  domain.ReasonHeavyTopic,
			Impact:  impact,
			Cost:    cost,
			Message: "This touches something that matters. I'm running a little low; want me to sit with it properly now, or set it aside until I've recovered?",
		}
		if err := c.parkForConsent(ctx, obs, d); err != nil {
			return d, err
		}
		return d, nil
	}

	if cost > energy+c.cfg.CostTolerance {
		d := domain.Decision{
			Outcome: domain.DecisionDefer,
			Reason:  domain.ReasonInsufficientEnergy,
			Impact:  impact,
			Cost:    cost,
		}
		if err := c.enqueue(ctx, obs, d); err != nil {
			return d, err
		}
		return d, nil
	}

	return domain.Decision{
		Outcome: domain.DecisionExtractNow,
		Reason:  domain.ReasonApproved,
		Impact:  impact,
		Cost:    cost,
	}, nil
}

// enqueue pushes a deferred or skipped observation with an impact-derived
// priority so a later drain pass can pick it up.
func (c *AdmissionController) enqueue(ctx context.Context, obs domain.Observation, d domain.Decision) error {
	entry := &domain.QueueEntry{
		Observation:   obs,
		Reason:        d.Reason,
		Priority:      domain.QueuePriority(d.Impact, d.Cost),
		EstimatedCost: d.Cost,
		Impact:        d.Impact,
	}
	if err := c.queue.Enqueue(ctx, entry); err != nil {
		return fmt.Errorf("enqueue observation %s: %w", obs.ID, err)
	}
	c.logger.Debug("observation queued",
		zap.String("observation_id", obs.ID),
		zap.String("reason", string(d.Reason)),
		zap.Int("priority", entry.Priority))
	return nil
}

// parkForConsent suspends an observation pending an explicit caller
// decision. Parked entries are invisible to the drain routine.
func (c *AdmissionController) parkForConsent(ctx context.Context, obs domain.Observation, d domain.Decision) error {
	entry := &domain.QueueEntry{
		Observation:   obs,
		Reason:        domain.ReasonAwaitingConsent,
		Priority:      domain.QueuePriority(d.Impact, d.Cost),
		EstimatedCost: d.Cost,
		Impact:        d.Impact,
	}
	if err := c.queue.Enqueue(ctx, entry); err != nil {
		return fmt.Errorf("park observation %s for consent: %w", obs.ID, err)
	}
	return nil
}

// Requeue pushes an observation back after a transient extraction failure
// so the next drain cycle retries it.
func (c *AdmissionController) Requeue(ctx context.Context, obs domain.Observation, impact domain.Impact, cost int) error {
	return c.enqueue(ctx, obs, domain.Decision{
		Reason: domain.ReasonExtractionFailed,
		Impact: impact,
		Cost:   cost,
	})
}

// RecordExtraction notes an extraction in the trailing-hour rate window.
func (c *AdmissionController) RecordExtraction(at time.Time) {
	c.windowMu.Lock()
	defer c.windowMu.Unlock()
	c.window = append(c.window, at)
}

func (c *AdmissionController) extractionsInLastHour(now time.Time) int {
	c.windowMu.Lock()
	defer c.windowMu.Unlock()

	cutoff := now.Add(-time.Hour)
	kept := c.window[:0]
	for _, t := range c.window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.window = kept
	return len(c.window)
}
