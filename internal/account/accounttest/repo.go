// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package accounttest provides an in-memory account repository for tests.
package accounttest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/account"
)

// InMemoryRepository implements account.Repository backed by a map. It
// mirrors the postgres repository's error codes so service tests can
// assert on the same taxonomy, and supports fault injection through the
// exported error fields.
type InMemoryRepository struct {
	mu       sync.Mutex
	accounts map[string]*account.Account

	CreateErr error // returned verbatim from Create when set
	GetErr    error // returned verbatim from GetByID/GetByEmail when set
	UpdateErr error // returned verbatim from the mutating operations when set
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{accounts: make(map[string]*account.Account)}
}

// Seed stores an account directly, bypassing duplicate checks.
func (r *InMemoryRepository) Seed(acct *account.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *acct
	r.accounts[acct.ID.String()] = &clone
}

// Stored returns the stored account by ID for assertions, or nil.
func (r *InMemoryRepository) Stored(id ulid.ULID) *account.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id.String()]
	if !ok {
		return nil
	}
	clone := *acct
	return &clone
}

// Create stores a new account, rejecting duplicate emails among active
// accounts.
func (r *InMemoryRepository) Create(_ context.Context, acct *account.Account) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Active && strings.EqualFold(existing.Email, acct.Email) {
			return oops.Code("DUPLICATE_ACCOUNT").
				With("email", acct.Email).
				Errorf("account already exists")
		}
	}

	clone := *acct
	r.accounts[acct.ID.String()] = &clone
	return nil
}

// GetByID returns the account regardless of active state.
func (r *InMemoryRepository) GetByID(_ context.Context, id ulid.ULID) (*account.Account, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.accounts[id.String()]
	if !ok {
		return nil, notFound()
	}
	clone := *acct
	return &clone, nil
}

// GetByEmail returns the active account with the email, case-insensitively.
func (r *InMemoryRepository) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, acct := range r.accounts {
		if acct.Active && strings.EqualFold(acct.Email, email) {
			clone := *acct
			return &clone, nil
		}
	}
	return nil, notFound()
}

// SetVerificationToken stores a verification token pair on an active
// account.
func (r *InMemoryRepository) SetVerificationToken(_ context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	if r.UpdateErr != nil {
		return r.UpdateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.accounts[id.String()]
	if !ok || !acct.Active {
		return notFound()
	}
	acct.VerificationTokenHash = &tokenHash
	acct.VerificationExpiresAt = &expiresAt
	acct.UpdatedAt = time.Now()
	return nil
}

// ConsumeVerificationToken atomically redeems an unexpired verification
// token, marking the account verified.
func (r *InMemoryRepository) ConsumeVerificationToken(_ context.Context, tokenHash string) (*account.Account, error) {
	if r.UpdateErr != nil {
		return nil, r.UpdateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, acct := range r.accounts {
		if !acct.Active || acct.VerificationTokenHash == nil || *acct.VerificationTokenHash != tokenHash {
			continue
		}
		if acct.VerificationExpiresAt == nil || !acct.VerificationExpiresAt.After(time.Now()) {
			continue
		}
		acct.Verified = true
		acct.VerificationTokenHash = nil
		acct.VerificationExpiresAt = nil
		acct.UpdatedAt = time.Now()
		clone := *acct
		return &clone, nil
	}
	return nil, invalidToken()
}

// SetResetToken stores a reset token pair on an active account.
func (r *InMemoryRepository) SetResetToken(_ context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	if r.UpdateErr != nil {
		return r.UpdateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.accounts[id.String()]
	if !ok || !acct.Active {
		return notFound()
	}
	acct.ResetTokenHash = &tokenHash
	acct.ResetExpiresAt = &expiresAt
	acct.UpdatedAt = time.Now()
	return nil
}

// ConsumeResetToken atomically redeems an unexpired reset token and
// replaces the password hash.
func (r *InMemoryRepository) ConsumeResetToken(_ context.Context, tokenHash, newPasswordHash string) (*account.Account, error) {
	if r.UpdateErr != nil {
		return nil, r.UpdateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, acct := range r.accounts {
		if !acct.Active || acct.ResetTokenHash == nil || *acct.ResetTokenHash != tokenHash {
			continue
		}
		if acct.ResetExpiresAt == nil || !acct.ResetExpiresAt.After(time.Now()) {
			continue
		}
		hash := newPasswordHash
		acct.PasswordHash = &hash
		acct.ResetTokenHash = nil
		acct.ResetExpiresAt = nil
		acct.UpdatedAt = time.Now()
		clone := *acct
		return &clone, nil
	}
	return nil, invalidToken()
}

// UpdatePassword replaces the password hash of an active account.
func (r *InMemoryRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	if r.UpdateErr != nil {
		return r.UpdateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.accounts[id.String()]
	if !ok || !acct.Active {
		return notFound()
	}
	acct.PasswordHash = &passwordHash
	acct.UpdatedAt = time.Now()
	return nil
}

// Deactivate soft-deactivates an active account.
func (r *InMemoryRepository) Deactivate(_ context.Context, id ulid.ULID) error {
	if r.UpdateErr != nil {
		return r.UpdateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.accounts[id.String()]
	if !ok || !acct.Active {
		return notFound()
	}
	acct.Active = false
	acct.UpdatedAt = time.Now()
	return nil
}

func notFound() error {
	return oops.Code("ACCOUNT_NOT_FOUND").Wrap(account.ErrNotFound)
}

func invalidToken() error {
	return oops.Code("INVALID_TOKEN").Wrap(account.ErrNotFound)
}

var _ account.Repository = (*InMemoryRepository)(nil)
