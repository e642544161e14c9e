// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RetentionConfig defines how long audit events are kept and how often the
// sweep runs.
type RetentionConfig struct {
	RetainEvents  time.Duration // how long to keep events
	SweepInterval time.Duration // how often to run the sweep cycle
}

// DefaultRetentionConfig returns the default retention policy.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		RetainEvents:  90 * 24 * time.Hour,
		SweepInterval: 24 * time.Hour,
	}
}

// normalized fills non-positive fields with defaults.
func (c RetentionConfig) normalized() RetentionConfig {
	def := DefaultRetentionConfig()
	if c.RetainEvents <= 0 {
		c.RetainEvents = def.RetainEvents
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	return c
}

// RetentionWorker runs periodic retention sweeps over the audit trail.
// The sweep is an idempotent range delete, so concurrent runs against the
// same table are safe.
type RetentionWorker struct {
	cfg    RetentionConfig
	store  RetentionStore
	logger *slog.Logger
	clock  func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRetentionWorker creates a retention worker. Non-positive config
// fields fall back to DefaultRetentionConfig values.
func NewRetentionWorker(cfg RetentionConfig, store RetentionStore) *RetentionWorker {
	return &RetentionWorker{
		cfg:    cfg.normalized(),
		store:  store,
		logger: slog.Default(),
		clock:  time.Now,
	}
}

// RunOnce executes a single retention sweep.
func (w *RetentionWorker) RunOnce(ctx context.Context) (int64, error) {
	cutoff := w.clock().Add(-w.cfg.RetainEvents)

	deleted, err := w.store.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		w.logger.Error("audit retention sweep failed", "error", err)
		return 0, err
	}
	if deleted > 0 {
		w.logger.Info("purged expired audit events", "count", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

// Start begins periodic sweeps. The first sweep runs immediately.
func (w *RetentionWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop stops the worker and waits for the current sweep to finish.
func (w *RetentionWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *RetentionWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("retention cycle failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("retention cycle failed", "error", err)
			}
		}
	}
}
