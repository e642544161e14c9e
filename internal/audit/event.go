// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package audit

import (
	"time"

	"github.com/keyward/keyward/internal/core"
)

// Action names recorded by the credential and session services. Analyzer
// queries match on these strings, so renaming one silently breaks
// brute-force and login-pattern detection for historical rows.
const (
	ActionAccountRegistered       = "account_registered"
	ActionEmailVerified           = "email_verified"
	ActionLoginSuccess            = "login_success"
	ActionLoginFailed             = "login_failed"
	ActionPasswordChanged         = "password_changed"
	ActionPasswordResetRequested  = "password_reset_requested"
	ActionPasswordResetCompleted  = "password_reset_completed"
	ActionAccountDeactivated      = "account_deactivated"
	ActionSessionCreated          = "session_created"
	ActionSessionExtended         = "session_extended"
	ActionSessionInvalidated      = "session_invalidated"
	ActionSessionsInvalidatedBulk = "sessions_invalidated_bulk"
	ActionSessionsCleaned         = "sessions_cleaned"
)

// Event is a single append-only audit record. Events are never updated or
// deleted except by the time-based retention sweep.
//
// AccountID is empty for account-less events such as failed logins against
// unknown emails; empty string fields are stored as NULL. Resource carries
// the normalized email for login events so failed attempts can be counted
// per address even when no account exists.
type Event struct {
	ID            string
	AccountID     string
	Action        string
	Resource      string
	OriginAddress string
	Details       map[string]any
	CreatedAt     time.Time
}

// NewEvent creates an event for the given action with a fresh identifier
// and timestamp. Callers fill the optional fields before recording.
func NewEvent(action string) Event {
	return Event{
		ID:        core.NewULID().String(),
		Action:    action,
		CreatedAt: time.Now(),
	}
}
