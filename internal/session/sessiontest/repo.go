// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package sessiontest provides an in-memory session repository for tests.
package sessiontest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/session"
)

// InMemoryRepository implements session.Repository backed by a map. It
// mirrors the postgres repository's error codes and active-row guards so
// service tests can assert the same transitions, and supports fault
// injection through the exported error fields.
type InMemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*session.Session

	CreateErr error // returned verbatim from Create when set
	GetErr    error // returned verbatim from Get/ListActive when set
	UpdateErr error // returned verbatim from the mutating operations when set
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{sessions: make(map[string]*session.Session)}
}

// Seed stores a session directly.
func (r *InMemoryRepository) Seed(sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *sess
	r.sessions[sess.ID] = &clone
}

// Stored returns the stored session by ID for assertions, or nil.
func (r *InMemoryRepository) Stored(id string) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil
	}
	clone := *sess
	return &clone
}

// Len returns the number of stored sessions.
func (r *InMemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Create stores a new session.
func (r *InMemoryRepository) Create(_ context.Context, sess *session.Session) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *sess
	r.sessions[sess.ID] = &clone
	return nil
}

// Get retrieves a session by identifier, active or not.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*session.Session, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, notFound()
	}
	clone := *sess
	return &clone, nil
}

// UpdateLastAccessed bumps the last-accessed timestamp.
func (r *InMemoryRepository) UpdateLastAccessed(_ context.Context, id string, at time.Time) error {
	if r.UpdateErr != nil {
		return r.UpdateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return notFound()
	}
	sess.LastAccessedAt = at
	return nil
}

// MarkInactive flips an active session to inactive.
func (r *InMemoryRepository) MarkInactive(_ context.Context, id string) (*session.Session, error) {
	if r.UpdateErr != nil {
		return nil, r.UpdateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok || !sess.Active {
		return nil, notFound()
	}
	sess.Active = false
	clone := *sess
	return &clone, nil
}

// Extend pushes the expiry forward from its current value.
func (r *InMemoryRepository) Extend(_ context.Context, id string, days int) (*session.Session, error) {
	if r.UpdateErr != nil {
		return nil, r.UpdateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok || !sess.Active {
		return nil, notFound()
	}
	sess.ExpiresAt = sess.ExpiresAt.Add(time.Duration(days) * 24 * time.Hour)
	clone := *sess
	return &clone, nil
}

// InvalidateAllForAccount marks every active session of the account
// inactive.
func (r *InMemoryRepository) InvalidateAllForAccount(_ context.Context, accountID ulid.ULID) (int64, error) {
	if r.UpdateErr != nil {
		return 0, r.UpdateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, sess := range r.sessions {
		if sess.AccountID == accountID && sess.Active {
			sess.Active = false
			count++
		}
	}
	return count, nil
}

// ListActive returns the account's active, unexpired sessions ordered
// most recently accessed first.
func (r *InMemoryRepository) ListActive(_ context.Context, accountID ulid.ULID) ([]session.Session, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []session.Session
	for _, sess := range r.sessions {
		if sess.AccountID == accountID && sess.Valid(now) {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastAccessedAt.After(out[j].LastAccessedAt)
	})
	return out, nil
}

// MarkExpiredInactive flips expired-but-active sessions to inactive.
func (r *InMemoryRepository) MarkExpiredInactive(_ context.Context) (int64, error) {
	if r.UpdateErr != nil {
		return 0, r.UpdateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var count int64
	for _, sess := range r.sessions {
		if sess.Active && !now.Before(sess.ExpiresAt) {
			sess.Active = false
			count++
		}
	}
	return count, nil
}

// DeleteExpiredInactive hard-deletes sessions that are both expired and
// inactive.
func (r *InMemoryRepository) DeleteExpiredInactive(_ context.Context) (int64, error) {
	if r.UpdateErr != nil {
		return 0, r.UpdateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var count int64
	for id, sess := range r.sessions {
		if !sess.Active && !now.Before(sess.ExpiresAt) {
			delete(r.sessions, id)
			count++
		}
	}
	return count, nil
}

func notFound() error {
	return oops.Code("SESSION_NOT_FOUND").Wrap(session.ErrNotFound)
}

var _ session.Repository = (*InMemoryRepository)(nil)
