// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package session owns the session lifecycle: creation on successful
// authentication, validation with lazy expiry, extension, single and
// bulk invalidation, and the cleanup sweep.
//
// Identifiers pair a zero-padded millisecond timestamp with 256 bits of
// randomness, so they sort lexically by creation time while staying
// unguessable. A session is usable iff it is active and unexpired; the
// check runs against storage on every use and is never cached. Expiry is
// detected lazily during validation rather than swept eagerly: an
// expired session is marked inactive the first time it is seen, and the
// periodic cleanup removes rows that are both expired and inactive.
package session
