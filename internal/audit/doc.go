// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package audit provides the append-only audit trail behind the credential
// and session services.
//
// # Architecture
//
// Writes go through Recorder, whose PostgresRecorder implementation
// buffers events in memory and flushes them in batched transactions (by
// size or age). Recording never blocks the audited operation: when the
// buffer is full or a batch write fails, events are dropped and a metric
// incremented. Reads go through Store, which serves the security
// analyzer's brute-force and login-pattern queries.
//
// Events reference accounts by plain identifier without a foreign key so
// account-less events (failed logins against unknown emails) and events
// for since-deactivated accounts are always accepted.
//
// # Retention
//
// RetentionWorker periodically deletes events past the configured age.
// The sweep is an idempotent range delete and safe to run concurrently
// with live traffic.
//
// # Metrics
//
//   - keyward_audit_events_total{action}: events written
//   - keyward_audit_buffer_full_total: events dropped on a full buffer
//   - keyward_audit_failures_total{reason}: write failures by reason
package audit
