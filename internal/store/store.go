// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package store provides PostgreSQL connectivity and schema management.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// connectBackoffBase is the initial fibonacci backoff interval between
// connection attempts.
const connectBackoffBase = 250 * time.Millisecond

// Connect opens a pgx connection pool and verifies connectivity with a
// ping. Transient ping failures are retried with fibonacci backoff until
// maxWait elapses, which covers databases still starting up when the
// process boots.
func Connect(ctx context.Context, dsn string, maxWait time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "parse dsn").
			Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "create pool").
			Wrap(err)
	}

	backoff := retry.WithMaxDuration(maxWait, retry.NewFibonacci(connectBackoffBase))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "ping database").
			With("max_wait", maxWait.String()).
			Wrap(err)
	}

	return pool, nil
}
