// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package credential owns password hashing, strength screening, and the
// email-verification and password-reset token lifecycle.
//
// Passwords are hashed with argon2id in PHC string format; the work
// factor is configurable and embedded in each hash, so verification
// survives parameter changes and legacy hashes upgrade transparently on
// the next successful login. Verification and reset tokens carry 256 bits
// of entropy and are stored only as SHA-256 hashes; redemption is a
// single atomic verify-and-clear, so a token can be used exactly once no
// matter how many requests race on it.
//
// Service failures follow a fixed taxonomy: VALIDATION_FAILED carries
// human-readable reasons back to the caller, INVALID_CREDENTIALS is
// deliberately uniform across unknown accounts, wrong passwords, and
// deactivated accounts (lookup resolves active accounts only), and
// INVALID_TOKEN covers expired, consumed, and never-issued tokens alike.
package credential
