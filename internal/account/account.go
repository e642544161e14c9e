// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package account

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/core"
)

// MaxEmailLength bounds stored addresses per RFC 5321's path limit.
const MaxEmailLength = 254

// Account is a durable identity record. Email uniqueness is enforced
// case-insensitively among active accounts only; deactivated rows keep
// their email for the audit trail. PasswordHash is nil for accounts that
// authenticate through an external directory.
type Account struct {
	ID                    ulid.ULID
	Email                 string
	PasswordHash          *string
	Verified              bool
	VerificationTokenHash *string
	VerificationExpiresAt *time.Time
	ResetTokenHash        *string
	ResetExpiresAt        *time.Time
	Active                bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// New creates an active, unverified account. The email should already be
// normalized (trimmed, lowercased) by the caller; only structural bounds
// are enforced here.
func New(email string, passwordHash *string) (*Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, oops.Code("VALIDATION_FAILED").Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return nil, oops.Code("VALIDATION_FAILED").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}

	now := time.Now()
	return &Account{
		ID:           core.NewULID(),
		Email:        email,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// HasPassword reports whether the account carries a local password
// credential. Externally authenticated accounts return false.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// Repository manages account persistence. Implementations translate
// storage-level failures into oops-coded errors at this boundary; token
// consumption methods are single-statement atomic so two concurrent
// redemptions of the same token cannot both succeed.
type Repository interface {
	// Create stores a new account. A duplicate active email surfaces as
	// a DUPLICATE_ACCOUNT error.
	Create(ctx context.Context, acct *Account) error

	// GetByID retrieves an account by ID, active or not.
	// Returns ErrNotFound if no such account exists.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves the active account with the given email
	// (case-insensitive). Deactivated accounts are invisible here.
	// Returns ErrNotFound if no active account has the email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// SetVerificationToken stores a verification token hash and its expiry
	// together, replacing any outstanding verification token.
	SetVerificationToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error

	// ConsumeVerificationToken atomically marks the holding account
	// verified and clears the token pair. Returns ErrNotFound when the
	// token is unknown, expired, or already consumed.
	ConsumeVerificationToken(ctx context.Context, tokenHash string) (*Account, error)

	// SetResetToken stores a reset token hash and its expiry together,
	// replacing any outstanding reset token.
	SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error

	// ConsumeResetToken atomically sets the new password hash and clears
	// the token pair. Returns ErrNotFound when the token is unknown,
	// expired, or already consumed.
	ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string) (*Account, error)

	// UpdatePassword replaces the password hash for an account.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// Deactivate soft-deletes an active account. Returns ErrNotFound if
	// the account does not exist or is already inactive.
	Deactivate(ctx context.Context, id ulid.ULID) error
}
