// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package login orchestrates the authentication flow: credential
// verification, session creation, and advisory risk annotation.
package login

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/keyward/keyward/internal/account"
	"github.com/keyward/keyward/internal/credential"
	"github.com/keyward/keyward/internal/security"
	"github.com/keyward/keyward/internal/session"
	"github.com/keyward/keyward/pkg/errutil"
)

// Client describes the connecting client as seen by the transport layer.
type Client struct {
	// OriginAddress is the network address the attempt came from.
	OriginAddress string

	// Origin is the application origin the client presented, checked
	// against the configured allow list.
	Origin string

	// Agent is the client-agent string.
	Agent string
}

// Annotations are advisory security signals attached to a login outcome.
// A nil field means that signal could not be computed; the caller decides
// what to do with the rest (block, challenge, allow).
type Annotations struct {
	BruteForce *security.BruteForceReport
	Pattern    *security.LoginPattern
	Client     *security.ClientAnalysis
}

// Result is the outcome of a login attempt. On error the Result is still
// returned with whatever annotations were computed, so a rejected attempt
// carries its brute-force signal to the policy layer.
type Result struct {
	Account     *account.Account
	Session     *session.Session
	Annotations Annotations
}

// Authenticator verifies an email/password pair. Satisfied by the
// credential service.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password, origin string) (*account.Account, error)
}

// SessionCreator opens a session for an authenticated account. Satisfied
// by the session service.
type SessionCreator interface {
	Create(ctx context.Context, accountID ulid.ULID, opts session.CreateOptions) (*session.Session, error)
}

// Analyzer produces the advisory security signals. Satisfied by the
// security analyzer.
type Analyzer interface {
	DetectBruteForce(ctx context.Context, email, origin string) (security.BruteForceReport, error)
	AnalyzeLoginPattern(ctx context.Context, accountID, origin string) (security.LoginPattern, error)
	AnalyzeClient(meta security.ClientMetadata) security.ClientAnalysis
}

// Service wires the login control flow: verify the credential, create a
// session, annotate with risk signals. Analyzer failures are logged and
// degrade to missing annotations; they never block an otherwise valid
// login.
type Service struct {
	credentials Authenticator
	sessions    SessionCreator
	analyzer    Analyzer
}

// NewService creates a login Service.
func NewService(credentials Authenticator, sessions SessionCreator, analyzer Analyzer) *Service {
	return &Service{
		credentials: credentials,
		sessions:    sessions,
		analyzer:    analyzer,
	}
}

// Login authenticates the email/password pair and opens a session. The
// returned Result is never nil: on authentication failure it carries the
// client and brute-force annotations alongside the error, so the caller
// can escalate (challenge, lock, alert) without a second query.
func (s *Service) Login(ctx context.Context, email, password string, client Client) (*Result, error) {
	result := &Result{}

	analysis := s.analyzer.AnalyzeClient(security.ClientMetadata{
		Agent:  client.Agent,
		Origin: client.Origin,
	})
	result.Annotations.Client = &analysis

	acct, err := s.credentials.Authenticate(ctx, email, password, client.OriginAddress)
	if err != nil {
		attemptsCounter.WithLabelValues(outcomeFailure).Inc()
		s.annotateBruteForce(ctx, result, email, client.OriginAddress)
		return result, err
	}
	result.Account = acct

	sess, err := s.sessions.Create(ctx, acct.ID, session.CreateOptions{
		OriginAddress: client.OriginAddress,
		ClientAgent:   client.Agent,
	})
	if err != nil {
		attemptsCounter.WithLabelValues(outcomeError).Inc()
		return result, err
	}
	result.Session = sess

	attemptsCounter.WithLabelValues(outcomeSuccess).Inc()
	s.annotateBruteForce(ctx, result, email, client.OriginAddress)
	if pattern, err := s.analyzer.AnalyzeLoginPattern(ctx, acct.ID.String(), client.OriginAddress); err != nil {
		errutil.LogError(slog.Default(), "login pattern analysis failed", err)
	} else {
		result.Annotations.Pattern = &pattern
	}

	return result, nil
}

func (s *Service) annotateBruteForce(ctx context.Context, result *Result, email, origin string) {
	report, err := s.analyzer.DetectBruteForce(ctx, email, origin)
	if err != nil {
		errutil.LogError(slog.Default(), "brute force detection failed", err)
		return
	}
	result.Annotations.BruteForce = &report
}

// Wiring checks: the concrete services satisfy the interfaces this
// package consumes.
var (
	_ Authenticator  = (*credential.Service)(nil)
	_ SessionCreator = (*session.Service)(nil)
	_ Analyzer       = (*security.Analyzer)(nil)
)
