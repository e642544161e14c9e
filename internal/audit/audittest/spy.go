// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package audittest provides test doubles for the audit trail.
package audittest

import (
	"context"
	"sync"
	"time"

	"github.com/keyward/keyward/internal/audit"
)

// RecorderSpy is an audit.Recorder that captures events in memory so
// tests can assert on what a service recorded.
type RecorderSpy struct {
	mu     sync.Mutex
	events []audit.Event

	RecordErr error // returned from every Record when set
}

// NewRecorderSpy creates an empty spy.
func NewRecorderSpy() *RecorderSpy {
	return &RecorderSpy{}
}

// Record captures the event.
func (s *RecorderSpy) Record(_ context.Context, event audit.Event) error {
	if s.RecordErr != nil {
		return s.RecordErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Close is a no-op.
func (s *RecorderSpy) Close() error {
	return nil
}

// Events returns a copy of all captured events in record order.
func (s *RecorderSpy) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventsFor returns captured events with the given action.
func (s *RecorderSpy) EventsFor(action string) []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, event := range s.events {
		if event.Action == action {
			out = append(out, event)
		}
	}
	return out
}

// Reset discards captured events.
func (s *RecorderSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// StoreStub is an audit.Store serving canned query results.
type StoreStub struct {
	FailedLogins int64
	History      []audit.Event
	Err          error // returned from every query when set
}

// CountFailedLogins returns the canned count.
func (s *StoreStub) CountFailedLogins(_ context.Context, _, _ string, _ time.Time) (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.FailedLogins, nil
}

// LoginHistory returns the canned history.
func (s *StoreStub) LoginHistory(_ context.Context, _ string, _ time.Time) ([]audit.Event, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.History, nil
}

var (
	_ audit.Recorder = (*RecorderSpy)(nil)
	_ audit.Store    = (*StoreStub)(nil)
)
