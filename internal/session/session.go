// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/core"
)

const (
	// DefaultDuration is the session lifetime used when the caller does
	// not specify one.
	DefaultDuration = 7 * 24 * time.Hour

	// MaxClientAgentLen bounds the stored client-agent string. Anything
	// longer is truncated on create, not rejected.
	MaxClientAgentLen = 500

	// idRandomBytes is the entropy behind each session identifier.
	// 32 bytes hex-encode to 64 characters.
	idRandomBytes = 32
)

// Session is one authenticated client context. Many sessions may exist
// concurrently per account (multi-device). A session is usable iff
// Active and not yet expired; validity is re-checked on every use, never
// cached.
type Session struct {
	ID             string
	AccountID      ulid.ULID
	OriginAddress  string
	ClientAgent    string
	ExpiresAt      time.Time
	LastAccessedAt time.Time
	CreatedAt      time.Time
	Active         bool
}

// GenerateID produces a session identifier of the form
// <13-digit unix-millis>_<64 hex chars>. The zero-padded timestamp prefix
// makes identifiers lexically sortable by creation time; the 256-bit
// random suffix keeps them unguessable.
func GenerateID(now time.Time) (string, error) {
	random, err := core.RandomHex(idRandomBytes)
	if err != nil {
		return "", oops.Code("SESSION_ID_FAILED").Wrap(err)
	}
	return fmt.Sprintf("%013d_%s", now.UnixMilli(), random), nil
}

// New creates an active session for the account. A non-positive duration
// falls back to DefaultDuration; the client agent is truncated to
// MaxClientAgentLen runes.
func New(accountID ulid.ULID, origin, clientAgent string, duration time.Duration) (*Session, error) {
	if duration <= 0 {
		duration = DefaultDuration
	}

	now := time.Now()
	id, err := GenerateID(now)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:             id,
		AccountID:      accountID,
		OriginAddress:  origin,
		ClientAgent:    truncateAgent(clientAgent),
		ExpiresAt:      now.Add(duration),
		LastAccessedAt: now,
		CreatedAt:      now,
		Active:         true,
	}, nil
}

// Valid reports whether the session is usable at the given instant.
func (s *Session) Valid(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}

func truncateAgent(agent string) string {
	runes := []rune(agent)
	if len(runes) <= MaxClientAgentLen {
		return agent
	}
	return string(runes[:MaxClientAgentLen])
}

// Validation reasons. Expired and inactive sessions are indistinguishable
// to clients (both are simply invalid); the reason is internal signal.
const (
	ReasonExpired  = "expired"
	ReasonInactive = "inactive"
	ReasonNotFound = "not_found"
)

// Validation is the outcome of checking a session identifier. Session is
// set only when Valid.
type Validation struct {
	Valid   bool
	Reason  string
	Session *Session
}

// Repository manages session persistence. Implementations translate
// storage failures into oops-coded errors at this boundary. Mutating
// operations touch only rows still marked active, so invalidation cannot
// be undone by a concurrent update.
type Repository interface {
	// Create stores a new session. A missing owning account surfaces as
	// an ACCOUNT_NOT_FOUND error.
	Create(ctx context.Context, sess *Session) error

	// Get retrieves a session by identifier, active or not.
	// Returns ErrNotFound if no such session exists.
	Get(ctx context.Context, id string) (*Session, error)

	// UpdateLastAccessed bumps the last-accessed timestamp.
	// Returns ErrNotFound if the session no longer exists.
	UpdateLastAccessed(ctx context.Context, id string, at time.Time) error

	// MarkInactive flips an active session to inactive and returns it.
	// Returns ErrNotFound when the session is unknown or already
	// inactive, so callers can distinguish a real transition.
	MarkInactive(ctx context.Context, id string) (*Session, error)

	// Extend pushes the expiry of an active session forward by whole days
	// from its current expiry, never from now, and returns the updated
	// session. Returns ErrNotFound when the session is unknown or
	// inactive.
	Extend(ctx context.Context, id string, days int) (*Session, error)

	// InvalidateAllForAccount marks every active session of the account
	// inactive and reports how many were affected.
	InvalidateAllForAccount(ctx context.Context, accountID ulid.ULID) (int64, error)

	// ListActive returns the account's active, unexpired sessions ordered
	// most recently accessed first.
	ListActive(ctx context.Context, accountID ulid.ULID) ([]Session, error)

	// MarkExpiredInactive flips every expired-but-still-active session to
	// inactive, catching up sessions that were never lazily expired.
	MarkExpiredInactive(ctx context.Context) (int64, error)

	// DeleteExpiredInactive hard-deletes sessions that are both expired
	// and inactive. Safe to run concurrently with live traffic.
	DeleteExpiredInactive(ctx context.Context) (int64, error)
}
