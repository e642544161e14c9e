// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// Store is the query side of the audit trail, consumed by the security
// analyzer heuristics.
type Store interface {
	// CountFailedLogins counts failed-login events since the given time
	// that match either the email (recorded as the event resource) or the
	// origin address. Empty email or origin matches nothing for that arm.
	CountFailedLogins(ctx context.Context, email, origin string, since time.Time) (int64, error)

	// LoginHistory returns login events (successes and failures) for the
	// account since the given time, most recent first.
	LoginHistory(ctx context.Context, accountID string, since time.Time) ([]Event, error)
}

// RetentionStore is the deletion side of the audit trail, consumed by the
// retention worker.
type RetentionStore interface {
	// DeleteEventsBefore removes events created before the cutoff and
	// returns the number deleted.
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// storePool is the subset of pgxpool.Pool the store needs, satisfied by
// pgxmock pools in tests.
type storePool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store and RetentionStore against the
// audit_events table.
type PostgresStore struct {
	pool storePool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool storePool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// CountFailedLogins counts failed-login events matching the email or
// origin within the window.
func (s *PostgresStore) CountFailedLogins(ctx context.Context, email, origin string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM audit_events
		WHERE action = 'login_failed'
		  AND created_at >= $3
		  AND (resource = $1 OR origin_address = $2)`

	var count int64
	err := s.pool.QueryRow(ctx, query, email, origin, since).Scan(&count)
	if err != nil {
		return 0, oops.Code("STORAGE_ERROR").
			With("operation", "count failed logins").
			Wrap(err)
	}
	return count, nil
}

// LoginHistory returns login successes and failures for the account since
// the given time, most recent first.
func (s *PostgresStore) LoginHistory(ctx context.Context, accountID string, since time.Time) ([]Event, error) {
	query := `
		SELECT id, account_id, action, resource, origin_address, details, created_at
		FROM audit_events
		WHERE account_id = $1
		  AND action IN ('login_success', 'login_failed')
		  AND created_at >= $2
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, accountID, since)
	if err != nil {
		return nil, oops.Code("STORAGE_ERROR").
			With("operation", "query login history").
			Wrap(err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, oops.Code("STORAGE_ERROR").
				With("operation", "scan login history").
				Wrap(err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("STORAGE_ERROR").
			With("operation", "iterate login history").
			Wrap(err)
	}
	return events, nil
}

// DeleteEventsBefore removes events older than the cutoff.
func (s *PostgresStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, oops.Code("STORAGE_ERROR").
			With("operation", "delete expired audit events").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// scanEvent reads one audit event row. NULL columns map to zero values.
func scanEvent(row pgx.Row) (Event, error) {
	var (
		event     Event
		accountID *string
		resource  *string
		origin    *string
		details   []byte
	)

	err := row.Scan(&event.ID, &accountID, &event.Action, &resource, &origin, &details, &event.CreatedAt)
	if err != nil {
		//nolint:wrapcheck // Callers wrap with context-specific info
		return Event{}, err
	}

	if accountID != nil {
		event.AccountID = *accountID
	}
	if resource != nil {
		event.Resource = *resource
	}
	if origin != nil {
		event.OriginAddress = *origin
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &event.Details); err != nil {
			return Event{}, oops.Code("AUDIT_INVALID_DETAILS").Wrap(err)
		}
	}
	return event, nil
}

var (
	_ Store          = (*PostgresStore)(nil)
	_ RetentionStore = (*PostgresStore)(nil)
)
