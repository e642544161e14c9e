// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package postgres implements account persistence on PostgreSQL.
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
)

// poolIface abstracts pgxpool.Pool so repositories can be tested with pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account. A unique-constraint violation on the active
// email index is translated to a DUPLICATE_ACCOUNT error.
func (r *AccountRepository) Create(ctx context.Context, acct *account.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, email, password_hash, verified,
			verification_token_hash, verification_expires_at,
			reset_token_hash, reset_expires_at,
			active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		acct.ID.String(),
		acct.Email,
		acct.PasswordHash,
		acct.Verified,
		acct.VerificationTokenHash,
		acct.VerificationExpiresAt,
		acct.ResetTokenHash,
		acct.ResetExpiresAt,
		acct.Active,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("DUPLICATE_ACCOUNT").
				With("email", acct.Email).
				Wrap(err)
		}
		return oops.Code("STORAGE_ERROR").
			With("operation", "insert account").
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID, active or not.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, verified,
		       verification_token_hash, verification_expires_at,
		       reset_token_hash, reset_expires_at,
		       active, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id.String())

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("STORAGE_ERROR").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return acct, nil
}

// GetByEmail retrieves the active account with the given email
// (case-insensitive). Deactivated accounts are invisible here.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, verified,
		       verification_token_hash, verification_expires_at,
		       reset_token_hash, reset_expires_at,
		       active, created_at, updated_at
		FROM accounts
		WHERE LOWER(email) = LOWER($1) AND active
	`, email)

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("STORAGE_ERROR").
			With("operation", "get account by email").
			Wrap(err)
	}
	return acct, nil
}

// SetVerificationToken stores a verification token hash and expiry together.
func (r *AccountRepository) SetVerificationToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET verification_token_hash = $2, verification_expires_at = $3, updated_at = $4
		WHERE id = $1 AND active
	`, id.String(), tokenHash, expiresAt, time.Now())
	if err != nil {
		return oops.Code("STORAGE_ERROR").
			With("operation", "set verification token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// ConsumeVerificationToken atomically marks the holding account verified and
// clears the token pair. The single guarded UPDATE is what makes redemption
// single-use: a concurrent redeemer observes zero rows and gets INVALID_TOKEN.
func (r *AccountRepository) ConsumeVerificationToken(ctx context.Context, tokenHash string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE accounts
		SET verified = TRUE,
		    verification_token_hash = NULL,
		    verification_expires_at = NULL,
		    updated_at = NOW()
		WHERE verification_token_hash = $1
		  AND verification_expires_at > NOW()
		  AND active
		RETURNING id, email, password_hash, verified,
		          verification_token_hash, verification_expires_at,
		          reset_token_hash, reset_expires_at,
		          active, created_at, updated_at
	`, tokenHash)

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("INVALID_TOKEN").
			With("operation", "consume verification token").
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("STORAGE_ERROR").
			With("operation", "consume verification token").
			Wrap(err)
	}
	return acct, nil
}

// SetResetToken stores a reset token hash and expiry together.
func (r *AccountRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET reset_token_hash = $2, reset_expires_at = $3, updated_at = $4
		WHERE id = $1 AND active
	`, id.String(), tokenHash, expiresAt, time.Now())
	if err != nil {
		return oops.Code("STORAGE_ERROR").
			With("operation", "set reset token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// ConsumeResetToken atomically sets the new password hash and clears the
// token pair in one statement, so concurrent redemptions of the same token
// cannot both succeed.
func (r *AccountRepository) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE accounts
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_expires_at = NULL,
		    updated_at = NOW()
		WHERE reset_token_hash = $1
		  AND reset_expires_at > NOW()
		  AND active
		RETURNING id, email, password_hash, verified,
		          verification_token_hash, verification_expires_at,
		          reset_token_hash, reset_expires_at,
		          active, created_at, updated_at
	`, tokenHash, newPasswordHash)

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("INVALID_TOKEN").
			With("operation", "consume reset token").
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("STORAGE_ERROR").
			With("operation", "consume reset token").
			Wrap(err)
	}
	return acct, nil
}

// UpdatePassword replaces the password hash for an account.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, updated_at = $3
		WHERE id = $1 AND active
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("STORAGE_ERROR").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// Deactivate soft-deletes an active account.
func (r *AccountRepository) Deactivate(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET active = FALSE, updated_at = $2
		WHERE id = $1 AND active
	`, id.String(), time.Now())
	if err != nil {
		return oops.Code("STORAGE_ERROR").
			With("operation", "deactivate account").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *AccountRepository) scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		idStr                 string
		email                 string
		passwordHash          *string
		verified              bool
		verificationTokenHash *string
		verificationExpiresAt *time.Time
		resetTokenHash        *string
		resetExpiresAt        *time.Time
		active                bool
		createdAt             time.Time
		updatedAt             time.Time
	)

	err := row.Scan(
		&idStr,
		&email,
		&passwordHash,
		&verified,
		&verificationTokenHash,
		&verificationExpiresAt,
		&resetTokenHash,
		&resetExpiresAt,
		&active,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("STORAGE_ERROR").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	return &account.Account{
		ID:                    id,
		Email:                 email,
		PasswordHash:          passwordHash,
		Verified:              verified,
		VerificationTokenHash: verificationTokenHash,
		VerificationExpiresAt: verificationExpiresAt,
		ResetTokenHash:        resetTokenHash,
		ResetExpiresAt:        resetExpiresAt,
		Active:                active,
		CreatedAt:             createdAt,
		UpdatedAt:             updatedAt,
	}, nil
}

// Compile-time interface check.
var _ account.Repository = (*AccountRepository)(nil)
