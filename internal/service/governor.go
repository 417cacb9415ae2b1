package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/tessierh/psyche/internal/domain"
	"go.uber.org/zap"
)

// GovernorConfig carries the governor's tunables and classification
// strategies.
type GovernorConfig struct {
	Thresholds domain.ResourceThresholds
	Triviality TrivialityClassifier
	Impact     ImpactClassifier
	Cost       CostEstimator
}

func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		Thresholds: domain.DefaultResourceThresholds(),
		Triviality: DefaultTriviality,
		Impact:     DefaultImpact,
		Cost:       DefaultCost,
	}
}

// Governor owns the bounded, decaying and recoverable capacity value and
// the coarse state derived from it. Every mutation runs under one mutex
// and is persisted before it returns, so the conversational path and the
// recovery worker can never interleave a read-modify-write, and the value
// survives restarts.
type Governor struct {
	mu     sync.Mutex
	energy int

	state  domain.ResourceStateStore
	events domain.ResourceEventStore
	cfg    GovernorConfig
	logger *zap.Logger
}

// NewGovernor loads the persisted energy value and returns a ready governor.
func NewGovernor(ctx context.Context, state domain.ResourceStateStore, events domain.ResourceEventStore, cfg GovernorConfig, logger *zap.Logger) (*Governor, error) {
	if cfg.Triviality == nil {
		cfg.Triviality = DefaultTriviality
	}
	if cfg.Impact == nil {
		cfg.Impact = DefaultImpact
	}
	if cfg.Cost == nil {
		cfg.Cost = DefaultCost
	}

	energy, err := state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load energy: %w", err)
	}

	return &Governor{
		energy: energy,
		state:  state,
		events: events,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Energy returns the current capacity value.
func (g *Governor) Energy() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.energy
}

// State returns the coarse classification of the current capacity.
func (g *Governor) State() domain.ResourceState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg.Thresholds.StateFor(g.energy)
}

// IsTrivial applies the triviality strategy.
func (g *Governor) IsTrivial(obs domain.Observation) bool {
	return g.cfg.Triviality(obs)
}

// EstimateImpact applies the impact strategy.
func (g *Governor) EstimateImpact(obs domain.Observation) domain.Impact {
	return g.cfg.Impact(obs)
}

// EstimateCost applies the cost strategy.
func (g *Governor) EstimateCost(obs domain.Observation) int {
	return g.cfg.Cost(obs)
}

// Spend deducts cost from capacity, floored at zero, persists the new
// value, and appends an extraction event. Returns the new capacity.
func (g *Governor) Spend(ctx context.Context, cost int, reason string) (int, error) {
	return g.mutate(ctx, -cost, domain.EventExtraction, reason)
}

// Recover restores capacity, ceilinged at the maximum, persists the new
// value, and appends a recovery event. Returns the new capacity.
func (g *Governor) Recover(ctx context.Context, amount int, reason string) (int, error) {
	return g.mutate(ctx, amount, domain.EventRecovered, reason)
}

// Reset restores capacity to the maximum.
func (g *Governor) Reset(ctx context.Context, reason string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.apply(ctx, domain.MaxEnergy, domain.EventReset, reason)
}

// RecordDecline appends a decline event without touching capacity.
func (g *Governor) RecordDecline(ctx context.Context, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.apply(ctx, g.energy, domain.EventDecline, reason)
	return err
}

func (g *Governor) mutate(ctx context.Context, delta int, typ domain.ResourceEventType, reason string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.apply(ctx, g.energy+delta, typ, reason)
}

// apply clamps, persists, logs, then commits the in-memory value. Called
// with the mutex held. The store write happens before the in-memory commit
// so a failed write leaves the governor consistent with the database.
func (g *Governor) apply(ctx context.Context, target int, typ domain.ResourceEventType, reason string) (int, error) {
	before := g.energy
	after := domain.ClampEnergy(target)

	if err := g.state.Save(ctx, after); err != nil {
		return before, fmt.Errorf("persist energy: %w", err)
	}

	if err := g.events.Append(ctx, &domain.ResourceEvent{
		Type:         typ,
		EnergyBefore: before,
		EnergyAfter:  after,
		Reason:       reason,
	}); err != nil {
		// The event log is observational; losing a row is not worth
		// failing the mutation over.
		g.logger.Warn("failed to append resource event", zap.Error(err))
	}

	g.energy = after

	if before != after {
		g.logger.Debug("energy changed",
			zap.Int("before", before),
			zap.Int("after", after),
			zap.String("type", string(typ)),
			zap.String("state", string(g.cfg.Thresholds.StateFor(after))),
			zap.String("reason", reason))
	}
	return after, nil
}
