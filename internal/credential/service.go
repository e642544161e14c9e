// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package credential

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/account"
	"github.com/keyward/keyward/internal/audit"
	"github.com/keyward/keyward/internal/security"
	"github.com/keyward/keyward/pkg/errutil"
)

// SessionRevoker invalidates every active session of an account. Satisfied
// by the session service; credential operations that change or remove the
// password use it to end sessions the old credential created.
type SessionRevoker interface {
	InvalidateAllForAccount(ctx context.Context, accountID ulid.ULID) (int64, error)
}

// ServiceConfig tunes token lifetimes.
type ServiceConfig struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// normalized fills non-positive fields with defaults.
func (c ServiceConfig) normalized() ServiceConfig {
	if c.VerificationTTL <= 0 {
		c.VerificationTTL = DefaultVerificationTTL
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = DefaultResetTTL
	}
	return c
}

// Service provides registration, authentication, and credential lifecycle
// operations. All state transitions are recorded as audit events;
// recording failures are logged and never fail the operation.
type Service struct {
	accounts account.Repository
	sessions SessionRevoker
	hasher   PasswordHasher
	recorder audit.Recorder
	cfg      ServiceConfig
}

// NewService creates a credential Service. Zero config fields fall back to
// the default token lifetimes.
func NewService(accounts account.Repository, sessions SessionRevoker, hasher PasswordHasher, recorder audit.Recorder, cfg ServiceConfig) *Service {
	return &Service{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		recorder: recorder,
		cfg:      cfg.normalized(),
	}
}

// dummyPasswordHash is used when an account doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates an account with a hashed password and a pending
// email-verification token. The returned token carries the only plaintext
// copy; the caller delivers it to the address and discards it.
func (s *Service) Register(ctx context.Context, email, password string) (*account.Account, IssuedToken, error) {
	emailCheck := security.ValidateEmailFormat(email)
	if !emailCheck.Valid {
		return nil, IssuedToken{}, oops.Code("VALIDATION_FAILED").
			With("reason", emailCheck.Reason).
			Errorf("invalid email address")
	}

	strength := ValidateStrength(password)
	if !strength.Valid {
		return nil, IssuedToken{}, oops.Code("VALIDATION_FAILED").
			With("failed_checks", strength.Failed).
			Errorf("password does not meet strength requirements")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, IssuedToken{}, err
	}

	token, err := NewVerificationToken(s.cfg.VerificationTTL)
	if err != nil {
		return nil, IssuedToken{}, err
	}

	acct, err := account.New(emailCheck.Normalized, &hash)
	if err != nil {
		return nil, IssuedToken{}, err
	}
	acct.VerificationTokenHash = &token.Hash
	acct.VerificationExpiresAt = &token.ExpiresAt

	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, IssuedToken{}, err
	}

	event := audit.NewEvent(audit.ActionAccountRegistered)
	event.AccountID = acct.ID.String()
	event.Resource = acct.Email
	s.audit(ctx, event)

	return acct, token, nil
}

// Authenticate verifies an email/password pair and returns the account on
// success. Unknown emails, wrong passwords, deactivated accounts, and
// externally authenticated accounts all fail identically with
// INVALID_CREDENTIALS, and verification runs against a dummy hash when
// there is nothing real to check, so response timing does not reveal
// which case occurred.
func (s *Service) Authenticate(ctx context.Context, email, password, origin string) (*account.Account, error) {
	normalized := security.NormalizeEmail(email)

	acct, lookupErr := s.accounts.GetByEmail(ctx, normalized)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	targetHash := dummyPasswordHash
	accountExists := false
	reason := "unknown account"

	if lookupErr != nil {
		if !errors.Is(lookupErr, account.ErrNotFound) {
			return nil, lookupErr
		}
	} else {
		accountExists = true
		if acct.HasPassword() {
			targetHash = *acct.PasswordHash
			reason = "password mismatch"
		} else {
			// Externally authenticated account; verify the dummy so timing
			// stays constant, then fail
			reason = "no local password"
		}
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		// Malformed stored hash fails closed as a mismatch
		if accountExists {
			errutil.LogError(slog.Default(), "stored password hash failed verification", verifyErr)
		}
		valid = false
	}

	if !accountExists || !valid {
		event := audit.NewEvent(audit.ActionLoginFailed)
		if accountExists {
			event.AccountID = acct.ID.String()
		}
		event.Resource = normalized
		event.OriginAddress = origin
		event.Details = map[string]any{"reason": reason}
		s.audit(ctx, event)

		return nil, oops.Code("INVALID_CREDENTIALS").Errorf("invalid email or password")
	}

	// Upgrade legacy hashes on successful login
	if s.hasher.NeedsUpgrade(*acct.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			_ = s.accounts.UpdatePassword(ctx, acct.ID, newHash) //nolint:errcheck // Best effort, login succeeds regardless
		}
	}

	event := audit.NewEvent(audit.ActionLoginSuccess)
	event.AccountID = acct.ID.String()
	event.Resource = acct.Email
	event.OriginAddress = origin
	s.audit(ctx, event)

	return acct, nil
}

// VerifyEmail redeems a verification token and marks the account verified.
// Redemption is atomic: a token already consumed, expired, or never issued
// fails with INVALID_TOKEN.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*account.Account, error) {
	if token == "" {
		return nil, oops.Code("INVALID_TOKEN").Errorf("verification token cannot be empty")
	}

	acct, err := s.accounts.ConsumeVerificationToken(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}

	event := audit.NewEvent(audit.ActionEmailVerified)
	event.AccountID = acct.ID.String()
	event.Resource = acct.Email
	s.audit(ctx, event)

	return acct, nil
}

// RequestPasswordReset issues a reset token for the account behind the
// email. For unknown addresses it records the probe and returns an empty
// token with no error, so callers answer identically either way and the
// operation cannot be used to enumerate accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (IssuedToken, error) {
	normalized := security.NormalizeEmail(email)

	acct, err := s.accounts.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			event := audit.NewEvent(audit.ActionPasswordResetRequested)
			event.Resource = normalized
			event.Details = map[string]any{"known_account": false}
			s.audit(ctx, event)

			return IssuedToken{}, nil
		}
		return IssuedToken{}, err
	}

	token, err := NewResetToken(s.cfg.ResetTTL)
	if err != nil {
		return IssuedToken{}, err
	}

	if err := s.accounts.SetResetToken(ctx, acct.ID, token.Hash, token.ExpiresAt); err != nil {
		return IssuedToken{}, err
	}

	event := audit.NewEvent(audit.ActionPasswordResetRequested)
	event.AccountID = acct.ID.String()
	event.Resource = acct.Email
	s.audit(ctx, event)

	return token, nil
}

// ResetPassword redeems a reset token and replaces the password in the
// same storage round trip, then invalidates the account's sessions: a
// reset implies the old credential may be compromised, so sessions it
// created don't survive it.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (*account.Account, error) {
	if token == "" {
		return nil, oops.Code("INVALID_TOKEN").Errorf("reset token cannot be empty")
	}

	strength := ValidateStrength(newPassword)
	if !strength.Valid {
		return nil, oops.Code("VALIDATION_FAILED").
			With("failed_checks", strength.Failed).
			Errorf("password does not meet strength requirements")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	acct, err := s.accounts.ConsumeResetToken(ctx, HashToken(token), hash)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.InvalidateAllForAccount(ctx, acct.ID); err != nil {
		errutil.LogError(slog.Default(), "failed to invalidate sessions after password reset", err)
	}

	event := audit.NewEvent(audit.ActionPasswordResetCompleted)
	event.AccountID = acct.ID.String()
	event.Resource = acct.Email
	s.audit(ctx, event)

	return acct, nil
}

// ChangePassword replaces the password after verifying the current one.
// Verification fails closed: a missing or malformed stored hash yields
// INVALID_CREDENTIALS, never an authenticated change.
func (s *Service) ChangePassword(ctx context.Context, accountID ulid.ULID, currentPassword, newPassword string) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !acct.Active {
		return oops.Code("ACCOUNT_DEACTIVATED").
			With("account_id", accountID.String()).
			Errorf("account is deactivated")
	}

	targetHash := dummyPasswordHash
	if acct.HasPassword() {
		targetHash = *acct.PasswordHash
	}
	valid, verifyErr := s.hasher.Verify(currentPassword, targetHash)
	if verifyErr != nil || !valid || !acct.HasPassword() {
		return oops.Code("INVALID_CREDENTIALS").Errorf("current password is incorrect")
	}

	strength := ValidateStrength(newPassword)
	if !strength.Valid {
		return oops.Code("VALIDATION_FAILED").
			With("failed_checks", strength.Failed).
			Errorf("password does not meet strength requirements")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePassword(ctx, acct.ID, hash); err != nil {
		return err
	}

	event := audit.NewEvent(audit.ActionPasswordChanged)
	event.AccountID = acct.ID.String()
	event.Resource = acct.Email
	s.audit(ctx, event)

	return nil
}

// Deactivate soft-deactivates an account and invalidates its sessions.
// Deactivating a missing or already-inactive account fails with
// ACCOUNT_NOT_FOUND.
func (s *Service) Deactivate(ctx context.Context, accountID ulid.ULID) error {
	if err := s.accounts.Deactivate(ctx, accountID); err != nil {
		return err
	}

	if _, err := s.sessions.InvalidateAllForAccount(ctx, accountID); err != nil {
		errutil.LogError(slog.Default(), "failed to invalidate sessions after deactivation", err)
	}

	event := audit.NewEvent(audit.ActionAccountDeactivated)
	event.AccountID = accountID.String()
	s.audit(ctx, event)

	return nil
}

// audit records an event, logging failures without propagating them; a
// lost audit write never fails the operation it describes.
func (s *Service) audit(ctx context.Context, event audit.Event) {
	if err := s.recorder.Record(ctx, event); err != nil {
		errutil.LogError(slog.Default(), "failed to record audit event", err)
	}
}
