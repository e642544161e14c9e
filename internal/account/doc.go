// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package account defines the identity record at the root of the
// credential and session subsystems.
//
// Accounts are created through New, which validates structural bounds and
// stamps identifiers and timestamps; direct struct initialization bypasses
// validation and may create invalid state. Persistence goes through the
// Repository interface, whose postgres implementation lives in the
// postgres subpackage.
//
// Accounts are soft-deactivated, never hard-deleted: a deactivated row
// keeps its email for the audit trail but is invisible to email lookup
// and releases its claim on the address (uniqueness holds among active
// accounts only).
package account
