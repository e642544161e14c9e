// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package postgres implements session persistence on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/account"
	"github.com/keyward/keyward/internal/session"
)

// poolIface abstracts pgxpool.Pool so repositories can be tested with pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SessionRepository implements session.Repository using PostgreSQL.
type SessionRepository struct {
	pool poolIface
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool poolIface) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session. A foreign-key violation on the owning
// account is translated to ACCOUNT_NOT_FOUND.
func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (
			id, account_id, origin_address, client_agent,
			expires_at, last_accessed_at, created_at, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		sess.ID,
		sess.AccountID.String(),
		sess.OriginAddress,
		sess.ClientAgent,
		sess.ExpiresAt,
		sess.LastAccessedAt,
		sess.CreatedAt,
		sess.Active,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return oops.Code("ACCOUNT_NOT_FOUND").
				With("account_id", sess.AccountID.String()).
				Wrap(account.ErrNotFound)
		}
		return oops.Code("STORAGE_ERROR").
			With("operation", "insert session").
			Wrap(err)
	}
	return nil
}

// Get retrieves a session by identifier, active or not.
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, account_id, origin_address, client_agent,
		       expires_at, last_accessed_at, created_at, active
		FROM sessions
		WHERE id = $1
	`, id)

	sess, err := r.scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			Wrap(session.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("STORAGE_ERROR").
			With("operation", "get session").
			Wrap(err)
	}
	return sess, nil
}

// UpdateLastAccessed bumps the last-accessed timestamp.
func (r *SessionRepository) UpdateLastAccessed(ctx context.Context, id string, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE sessions SET last_accessed_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return oops.Code("STORAGE_ERROR").
			With("operation", "update session last accessed").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			Wrap(session.ErrNotFound)
	}
	return nil
}

// MarkInactive flips an active session to inactive. The active guard
// makes the transition observable exactly once: a second caller sees zero
// rows and gets ErrNotFound.
func (r *SessionRepository) MarkInactive(ctx context.Context, id string) (*session.Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE sessions SET active = FALSE
		WHERE id = $1 AND active
		RETURNING id, account_id, origin_address, client_agent,
		          expires_at, last_accessed_at, created_at, active
	`, id)

	sess, err := r.scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			Wrap(session.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("STORAGE_ERROR").
			With("operation", "mark session inactive").
			Wrap(err)
	}
	return sess, nil
}

// Extend pushes the expiry forward from its current value in one
// statement, so concurrent extensions compose instead of overwriting each
// other.
func (r *SessionRepository) Extend(ctx context.Context, id string, days int) (*session.Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE sessions SET expires_at = expires_at + make_interval(days => $2)
		WHERE id = $1 AND active
		RETURNING id, account_id, origin_address, client_agent,
		          expires_at, last_accessed_at, created_at, active
	`, id, days)

	sess, err := r.scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			Wrap(session.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("STORAGE_ERROR").
			With("operation", "extend session").
			Wrap(err)
	}
	return sess, nil
}

// InvalidateAllForAccount marks every active session of the account
// inactive.
func (r *SessionRepository) InvalidateAllForAccount(ctx context.Context, accountID ulid.ULID) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE sessions SET active = FALSE
		WHERE account_id = $1 AND active
	`, accountID.String())
	if err != nil {
		return 0, oops.Code("STORAGE_ERROR").
			With("operation", "invalidate account sessions").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// ListActive returns the account's active, unexpired sessions ordered
// most recently accessed first.
func (r *SessionRepository) ListActive(ctx context.Context, accountID ulid.ULID) ([]session.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, origin_address, client_agent,
		       expires_at, last_accessed_at, created_at, active
		FROM sessions
		WHERE account_id = $1 AND active AND expires_at > NOW()
		ORDER BY last_accessed_at DESC
	`, accountID.String())
	if err != nil {
		return nil, oops.Code("STORAGE_ERROR").
			With("operation", "list active sessions").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var sessions []session.Session
	for rows.Next() {
		sess, err := r.scanSession(rows)
		if err != nil {
			return nil, oops.Code("STORAGE_ERROR").
				With("operation", "scan active session").
				Wrap(err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("STORAGE_ERROR").
			With("operation", "list active sessions").
			Wrap(err)
	}
	return sessions, nil
}

// MarkExpiredInactive flips expired-but-active sessions to inactive.
func (r *SessionRepository) MarkExpiredInactive(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE sessions SET active = FALSE
		WHERE active AND expires_at <= NOW()
	`)
	if err != nil {
		return 0, oops.Code("STORAGE_ERROR").
			With("operation", "mark expired sessions inactive").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpiredInactive hard-deletes sessions that are both expired and
// inactive. An idempotent range delete, safe under concurrent traffic.
func (r *SessionRepository) DeleteExpiredInactive(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM sessions
		WHERE NOT active AND expires_at <= NOW()
	`)
	if err != nil {
		return 0, oops.Code("STORAGE_ERROR").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans a single row into a Session.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *SessionRepository) scanSession(row pgx.Row) (*session.Session, error) {
	var (
		id             string
		accountIDStr   string
		originAddress  string
		clientAgent    string
		expiresAt      time.Time
		lastAccessedAt time.Time
		createdAt      time.Time
		active         bool
	)

	err := row.Scan(
		&id,
		&accountIDStr,
		&originAddress,
		&clientAgent,
		&expiresAt,
		&lastAccessedAt,
		&createdAt,
		&active,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("STORAGE_ERROR").
			With("operation", "scan session").
			Wrap(err)
	}

	accountID, err := ulid.Parse(accountIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT_ID").
			With("operation", "parse session account id").
			With("account_id", accountIDStr).
			Wrap(err)
	}

	return &session.Session{
		ID:             id,
		AccountID:      accountID,
		OriginAddress:  originAddress,
		ClientAgent:    clientAgent,
		ExpiresAt:      expiresAt,
		LastAccessedAt: lastAccessedAt,
		CreatedAt:      createdAt,
		Active:         active,
	}, nil
}

// Compile-time interface check.
var _ session.Repository = (*SessionRepository)(nil)
