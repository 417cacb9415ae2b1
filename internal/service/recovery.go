package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RecoveryConfig tunes the background recovery loop.
type RecoveryConfig struct {
	Interval time.Duration
	Amount   int
	// DrainThreshold: once recovered to at least this much energy, the
	// worker opportunistically works the deferred queue.
	DrainThreshold int
	// DrainBatch caps how many queue entries one tick may process.
	DrainBatch int
}

func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Interval:       10 * time.Minute,
		Amount:         5,
		DrainThreshold: 60,
		DrainBatch:     3,
	}
}

// RecoveryWorker restores capacity on a fixed cadence and drains deferred
// work whenever enough headroom has built up. It shares the governor's
// mutex with the conversational path, so recovery ticks and live spending
// never interleave.
type RecoveryWorker struct {
	governor *Governor
	pipeline *Pipeline
	cfg      RecoveryConfig
	logger   *zap.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewRecoveryWorker(governor *Governor, pipeline *Pipeline, cfg RecoveryConfig, logger *zap.Logger) *RecoveryWorker {
	return &RecoveryWorker{
		governor: governor,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (w *RecoveryWorker) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("recovery worker started",
		zap.Duration("interval", w.cfg.Interval),
		zap.Int("amount", w.cfg.Amount))
}

func (w *RecoveryWorker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info("recovery worker stopped")
}

func (w *RecoveryWorker) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick()
		case <-w.stopCh:
			return
		}
	}
}

// tick performs one recovery step. Recovery never exceeds the capacity
// ceiling; the skip-at-full case is handled by the governor's clamp and
// the no-op detection in its logger.
func (w *RecoveryWorker) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	energy, err := w.governor.Recover(ctx, w.cfg.Amount, "scheduled recovery")
	if err != nil {
		w.logger.Error("recovery tick failed", zap.Error(err))
		return
	}

	if energy < w.cfg.DrainThreshold {
		return
	}
	if _, err := w.pipeline.Drain(ctx, w.cfg.DrainBatch); err != nil {
		w.logger.Error("background drain failed", zap.Error(err))
	}
}
