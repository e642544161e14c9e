// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package security provides stateless risk heuristics layered on top of
// the audit trail: brute-force detection, login-pattern risk scoring,
// client-fingerprint suspicion, input sanitization, and email format
// validation.
//
// Everything here is advisory. Analyzer methods return reports plus an
// error the caller logs and continues past; a heuristic failure must
// never block an otherwise-valid login, and a suspicious signal is
// surfaced to the calling layer rather than acted on here. Audit writes
// happen in the credential and session services, not in this package.
package security
