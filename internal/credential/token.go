// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/core"
)

// TokenBytes is the entropy, in bytes, of issued verification and reset
// tokens. 32 bytes hex-encode to a 64-character token.
const TokenBytes = 32

// Default token lifetimes. Verification tokens are long-lived because mail
// delivery and user reaction are slow; reset tokens are short-lived because
// they grant a password change.
const (
	DefaultVerificationTTL = 24 * time.Hour
	DefaultResetTTL        = time.Hour
)

// IssuedToken carries a freshly generated token: the plaintext value handed
// to the caller exactly once, the hash stored at rest, and the expiry.
// The plaintext is never persisted or logged.
type IssuedToken struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
}

// NewVerificationToken issues an email-verification token. A non-positive
// ttl falls back to DefaultVerificationTTL.
func NewVerificationToken(ttl time.Duration) (IssuedToken, error) {
	if ttl <= 0 {
		ttl = DefaultVerificationTTL
	}
	return newToken(ttl)
}

// NewResetToken issues a password-reset token. A non-positive ttl falls
// back to DefaultResetTTL.
func NewResetToken(ttl time.Duration) (IssuedToken, error) {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return newToken(ttl)
}

func newToken(ttl time.Duration) (IssuedToken, error) {
	token, err := core.RandomHex(TokenBytes)
	if err != nil {
		return IssuedToken{}, oops.Code("TOKEN_GENERATION_FAILED").Wrap(err)
	}
	return IssuedToken{
		Token:     token,
		Hash:      HashToken(token),
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// HashToken returns the hex-encoded SHA-256 digest of a token. Only hashes
// are stored, so a leaked database copy cannot redeem live tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
