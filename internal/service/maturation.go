package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tessierh/psyche/internal/domain"
	"go.uber.org/zap"
)

// Tracker advances beliefs through the maturity lifecycle. Promotion is
// one-way and driven purely by age and reinforcement count; the advanced
// states are assigned by operators, never by the sweep.
type Tracker struct {
	beliefs domain.BeliefStore
	rules   domain.MaturityRules
	logger  *zap.Logger
	now     func() time.Time
}

func NewTracker(beliefs domain.BeliefStore, rules domain.MaturityRules, logger *zap.Logger) *Tracker {
	return &Tracker{beliefs: beliefs, rules: rules, logger: logger, now: time.Now}
}

// SweepResult summarizes one maturation pass.
type SweepResult struct {
	Examined int `json:"examined"`
	Promoted int `json:"promoted"`
}

// Sweep examines every active belief and applies at most one forward
// transition each. Failures on individual beliefs are logged and skipped
// so one bad row cannot stall the rest.
func (t *Tracker) Sweep(ctx context.Context) (SweepResult, error) {
	active, err := t.beliefs.ListActive(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list active beliefs: %w", err)
	}

	now := t.now()
	res := SweepResult{Examined: len(active)}
	for i := range active {
		b := &active[i]
		next := domain.NextMaturity(b.Maturity, b.Age(now), b.EvidenceCount, t.rules)
		if next == b.Maturity {
			continue
		}
		if !b.Maturity.CanAdvanceTo(next) {
			continue
		}
		if err := t.beliefs.UpdateMaturity(ctx, b.ID, next); err != nil {
			t.logger.Error("maturity update failed",
				zap.String("belief_id", b.ID.String()), zap.Error(err))
			continue
		}
		res.Promoted++
		t.logger.Info("belief promoted",
			zap.String("belief_id", b.ID.String()),
			zap.String("statement", b.Statement),
			zap.String("from", string(b.Maturity)),
			zap.String("to", string(next)))
	}
	return res, nil
}

// IsInProbation reports whether the belief is still in its zero-penalty
// window, consulting current maturity state rather than any cached flag.
func (t *Tracker) IsInProbation(ctx context.Context, id uuid.UUID) (bool, error) {
	b, err := t.beliefs.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return b.InProbation(t.now()), nil
}

// MaturationWorker runs periodic sweeps in the background.
type MaturationWorker struct {
	tracker  *Tracker
	interval time.Duration
	logger   *zap.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewMaturationWorker(tracker *Tracker, interval time.Duration, logger *zap.Logger) *MaturationWorker {
	return &MaturationWorker{
		tracker:  tracker,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (w *MaturationWorker) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("maturation worker started", zap.Duration("interval", w.interval))
}

func (w *MaturationWorker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info("maturation worker stopped")
}

func (w *MaturationWorker) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			res, err := w.tracker.Sweep(ctx)
			cancel()
			if err != nil {
				w.logger.Error("maturation sweep failed", zap.Error(err))
				continue
			}
			if res.Promoted > 0 {
				w.logger.Info("maturation sweep complete",
					zap.Int("examined", res.Examined),
					zap.Int("promoted", res.Promoted))
			}
		case <-w.stopCh:
			return
		}
	}
}
