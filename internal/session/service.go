// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/account"
	"github.com/keyward/keyward/internal/audit"
	"github.com/keyward/keyward/internal/credential"
	"github.com/keyward/keyward/internal/security"
	"github.com/keyward/keyward/pkg/errutil"
)

// ServiceConfig tunes session creation defaults.
type ServiceConfig struct {
	// Duration is the lifetime for sessions created without an explicit
	// one. Non-positive falls back to DefaultDuration.
	Duration time.Duration
}

func (c ServiceConfig) normalized() ServiceConfig {
	if c.Duration <= 0 {
		c.Duration = DefaultDuration
	}
	return c
}

// CreateOptions carries per-session creation inputs. A zero Duration uses
// the service default.
type CreateOptions struct {
	OriginAddress string
	ClientAgent   string
	Duration      time.Duration
}

// Service provides the session lifecycle: creation, validation with lazy
// expiry, extension, invalidation, and cleanup. State transitions are
// recorded as audit events; recording failures are logged and never fail
// the operation.
type Service struct {
	sessions Repository
	accounts account.Repository
	recorder audit.Recorder
	cfg      ServiceConfig
}

// NewService creates a session Service.
func NewService(sessions Repository, accounts account.Repository, recorder audit.Recorder, cfg ServiceConfig) *Service {
	return &Service{
		sessions: sessions,
		accounts: accounts,
		recorder: recorder,
		cfg:      cfg.normalized(),
	}
}

// Create opens a session for the account. Missing and deactivated
// accounts both fail with ACCOUNT_NOT_FOUND; a session is never created
// for an account that cannot log in. The client agent is sanitized and
// truncated before storage.
func (s *Service) Create(ctx context.Context, accountID ulid.ULID, opts CreateOptions) (*Session, error) {
	if opts.Duration < 0 {
		return nil, oops.Code("VALIDATION_FAILED").
			With("duration", opts.Duration.String()).
			Errorf("session duration cannot be negative")
	}

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !acct.Active {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("account_id", accountID.String()).
			Wrap(account.ErrNotFound)
	}

	duration := opts.Duration
	if duration == 0 {
		duration = s.cfg.Duration
	}

	sess, err := New(accountID, opts.OriginAddress, security.SanitizeInput(opts.ClientAgent), duration)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	createdCounter.Inc()
	event := audit.NewEvent(audit.ActionSessionCreated)
	event.AccountID = accountID.String()
	event.OriginAddress = opts.OriginAddress
	event.Details = map[string]any{"duration_hours": int(duration.Hours())}
	s.audit(ctx, event)

	return sess, nil
}

// Validate checks a session identifier and bumps its last-accessed
// timestamp when valid. Expiry wins over the active flag: a session past
// its expiry always reports ReasonExpired, and is marked inactive as a
// side effect so later checks short-circuit. Unknown identifiers report
// ReasonNotFound rather than erroring; only storage failures error.
func (s *Service) Validate(ctx context.Context, sessionID string) (Validation, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Validation{Reason: ReasonNotFound}, nil
		}
		return Validation{}, err
	}

	now := time.Now()
	if !now.Before(sess.ExpiresAt) {
		if sess.Active {
			if _, err := s.sessions.MarkInactive(ctx, sess.ID); err != nil && !errors.Is(err, ErrNotFound) {
				errutil.LogError(slog.Default(), "failed to mark expired session inactive", err)
			}
		}
		return Validation{Reason: ReasonExpired}, nil
	}

	if !sess.Active {
		return Validation{Reason: ReasonInactive}, nil
	}

	if err := s.sessions.UpdateLastAccessed(ctx, sess.ID, now); err != nil {
		// Swept away between the read and the bump
		if errors.Is(err, ErrNotFound) {
			return Validation{Reason: ReasonNotFound}, nil
		}
		return Validation{}, err
	}
	sess.LastAccessedAt = now

	return Validation{Valid: true, Session: sess}, nil
}

// Extend pushes an active session's expiry forward by the given number of
// days, counted from its current expiry rather than from now, so
// extending an already long-lived session never shortens it.
func (s *Service) Extend(ctx context.Context, sessionID string, days int) (*Session, error) {
	if days <= 0 {
		return nil, oops.Code("VALIDATION_FAILED").
			With("days", days).
			Errorf("extension days must be positive")
	}

	sess, err := s.sessions.Extend(ctx, sessionID, days)
	if err != nil {
		return nil, err
	}

	event := audit.NewEvent(audit.ActionSessionExtended)
	event.AccountID = sess.AccountID.String()
	event.Details = map[string]any{"days": days}
	s.audit(ctx, event)

	return sess, nil
}

// Invalidate terminates a session. Idempotent: invalidating an unknown or
// already-inactive session is a no-op, and only a real transition emits
// an audit event.
func (s *Service) Invalidate(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.MarkInactive(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	invalidatedCounter.WithLabelValues("single").Inc()
	event := audit.NewEvent(audit.ActionSessionInvalidated)
	event.AccountID = sess.AccountID.String()
	event.OriginAddress = sess.OriginAddress
	s.audit(ctx, event)

	return nil
}

// InvalidateAllForAccount terminates every active session of the account,
// reporting how many were affected. Used on password reset and account
// deactivation.
func (s *Service) InvalidateAllForAccount(ctx context.Context, accountID ulid.ULID) (int64, error) {
	count, err := s.sessions.InvalidateAllForAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		invalidatedCounter.WithLabelValues("bulk").Add(float64(count))
		event := audit.NewEvent(audit.ActionSessionsInvalidatedBulk)
		event.AccountID = accountID.String()
		event.Details = map[string]any{"count": count}
		s.audit(ctx, event)
	}

	return count, nil
}

// CleanupExpired deletes sessions that are both expired and inactive,
// after first marking any expired-but-active stragglers inactive. Run
// periodically by the sweep command; both statements are idempotent range
// updates, safe alongside live traffic.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	if _, err := s.sessions.MarkExpiredInactive(ctx); err != nil {
		return 0, err
	}

	deleted, err := s.sessions.DeleteExpiredInactive(ctx)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		sweptCounter.Add(float64(deleted))
		event := audit.NewEvent(audit.ActionSessionsCleaned)
		event.Details = map[string]any{"count": deleted}
		s.audit(ctx, event)
	}

	return deleted, nil
}

// ListActive returns the account's live sessions, most recently accessed
// first.
func (s *Service) ListActive(ctx context.Context, accountID ulid.ULID) ([]Session, error) {
	return s.sessions.ListActive(ctx, accountID)
}

func (s *Service) audit(ctx context.Context, event audit.Event) {
	if err := s.recorder.Record(ctx, event); err != nil {
		errutil.LogError(slog.Default(), "failed to record audit event", err)
	}
}

// The session service is the revoker the credential service invalidates
// through on password reset and deactivation.
var _ credential.SessionRevoker = (*Service)(nil)
