// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/oops"
)

// Recorder accepts audit events for persistence. Implementations must not
// block the caller on storage latency; recording is a side effect of the
// operation being audited, never a gate on it.
type Recorder interface {
	Record(ctx context.Context, event Event) error
	Close() error
}

var (
	eventsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyward_audit_events_total",
		Help: "Total number of audit events written, by action",
	}, []string{"action"})

	bufferFullCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyward_audit_buffer_full_total",
		Help: "Total number of audit events dropped because the buffer was full",
	})

	failuresCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyward_audit_failures_total",
		Help: "Total number of audit write failures, by reason",
	}, []string{"reason"})
)

// RecorderConfig tunes the asynchronous write path of PostgresRecorder.
type RecorderConfig struct {
	BufferSize  int           // capacity of the in-memory event buffer
	BatchSize   int           // events per insert transaction
	FlushPeriod time.Duration // max age of a partial batch before flushing
}

// DefaultRecorderConfig returns the default recorder tuning.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		BufferSize:  1000,
		BatchSize:   100,
		FlushPeriod: time.Second,
	}
}

// normalized fills non-positive fields with defaults.
func (c RecorderConfig) normalized() RecorderConfig {
	def := DefaultRecorderConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.FlushPeriod <= 0 {
		c.FlushPeriod = def.FlushPeriod
	}
	return c
}

// txBeginner is the subset of pgxpool.Pool the recorder needs, satisfied
// by pgxmock pools in tests.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRecorder implements Recorder with buffered batch inserts into
// the audit_events table. Events are dropped, with a metric, when the
// buffer is full or a batch write fails; the audit trail is best-effort
// and never backpressures authentication traffic.
type PostgresRecorder struct {
	pool   txBeginner
	cfg    RecorderConfig
	events chan Event
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewPostgresRecorder creates a PostgresRecorder and starts its batch
// consumer. Callers own the Close call; events still buffered at Close
// are flushed before it returns.
func NewPostgresRecorder(pool txBeginner, cfg RecorderConfig) *PostgresRecorder {
	cfg = cfg.normalized()
	r := &PostgresRecorder{
		pool:   pool,
		cfg:    cfg,
		events: make(chan Event, cfg.BufferSize),
		stop:   make(chan struct{}),
	}

	r.wg.Add(1)
	go r.batchConsumer()

	return r
}

// Record queues an event for asynchronous persistence. It never blocks:
// when the buffer is full the event is dropped and an error returned so
// the caller can log it.
func (r *PostgresRecorder) Record(_ context.Context, event Event) error {
	select {
	case r.events <- event:
		return nil
	default:
		bufferFullCounter.Inc()
		return oops.Code("AUDIT_BUFFER_FULL").
			With("action", event.Action).
			Errorf("audit buffer full, event dropped")
	}
}

// Close stops the batch consumer, flushing any buffered events first.
func (r *PostgresRecorder) Close() error {
	close(r.stop)
	r.wg.Wait()
	return nil
}

// batchConsumer accumulates events and writes them in batches, flushing
// when the batch fills, the flush period elapses, or the recorder closes.
func (r *PostgresRecorder) batchConsumer() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushPeriod)
	defer ticker.Stop()

	var batch []Event

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := r.writeBatch(ctx, batch); err != nil {
			slog.Error("audit batch write failed", "error", err, "count", len(batch))
			failuresCounter.WithLabelValues("batch_write_failed").Inc()
		}

		batch = batch[:0]
	}

	for {
		select {
		case event := <-r.events:
			batch = append(batch, event)
			if len(batch) >= r.cfg.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-r.stop:
			// Drain remaining events before exiting
			for {
				select {
				case event := <-r.events:
					batch = append(batch, event)
					if len(batch) >= r.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

const insertEventSQL = `
	INSERT INTO audit_events (id, account_id, action, resource, origin_address, details, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// writeBatch inserts a batch of events in a single transaction.
func (r *PostgresRecorder) writeBatch(ctx context.Context, events []Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("STORAGE_ERROR").
			With("operation", "begin audit batch").
			Wrap(err)
	}
	defer func() {
		//nolint:errcheck // Rollback error is expected when the transaction commits
		_ = tx.Rollback(ctx)
	}()

	for i := range events {
		event := &events[i]

		details, err := marshalDetails(event.Details)
		if err != nil {
			// Skip the event rather than poison the transaction
			slog.Error("failed to marshal audit details", "error", err, "action", event.Action)
			failuresCounter.WithLabelValues("marshal_failed").Inc()
			continue
		}

		if _, err := tx.Exec(ctx, insertEventSQL,
			event.ID,
			nullable(event.AccountID),
			event.Action,
			nullable(event.Resource),
			nullable(event.OriginAddress),
			details,
			event.CreatedAt,
		); err != nil {
			return oops.Code("STORAGE_ERROR").
				With("operation", "insert audit event").
				With("action", event.Action).
				Wrap(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("STORAGE_ERROR").
			With("operation", "commit audit batch").
			Wrap(err)
	}

	for i := range events {
		eventsCounter.WithLabelValues(events[i].Action).Inc()
	}
	return nil
}

// marshalDetails converts the detail map to JSON, or nil when empty so the
// column stays NULL.
func marshalDetails(details map[string]any) ([]byte, error) {
	if len(details) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, oops.Wrap(err)
	}
	return data, nil
}

// nullable maps empty strings to NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
