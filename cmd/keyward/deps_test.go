package main

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
)

// newMockCmd builds a command carrying the root configuration flags so
// run helpers can load config without a file. The database URL is a
// placeholder; tests inject fakes before anything would dial it.
// XDG_CONFIG_HOME points at an empty directory so a developer's real
// keyward.yaml cannot leak into test runs.
func newMockCmd(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	configFile = ""
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cmd := &cobra.Command{}
	cmd.Flags().AddFlagSet(NewRootCmd().PersistentFlags())
	if err := cmd.Flags().Set("database.url", "postgres://localhost:5432/keyward"); err != nil {
		t.Fatalf("failed to set database.url flag: %v", err)
	}

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

// fakeMigrator implements MigrationRunner and MigrationInspector for testing.
type fakeMigrator struct {
	upFunc      func() error
	stepsFunc   func(n int) error
	forceFunc   func(version int) error
	versionFunc func() (uint, bool, error)
	appliedFunc func() ([]uint, error)
	pendingFunc func() ([]uint, error)

	upCalls    int
	stepsCalls []int
	forceCalls []int
	closed     bool
}

func (m *fakeMigrator) Up() error {
	m.upCalls++
	if m.upFunc != nil {
		return m.upFunc()
	}
	return nil
}

func (m *fakeMigrator) Steps(n int) error {
	m.stepsCalls = append(m.stepsCalls, n)
	if m.stepsFunc != nil {
		return m.stepsFunc(n)
	}
	return nil
}

func (m *fakeMigrator) Force(version int) error {
	m.forceCalls = append(m.forceCalls, version)
	if m.forceFunc != nil {
		return m.forceFunc(version)
	}
	return nil
}

func (m *fakeMigrator) Version() (uint, bool, error) {
	if m.versionFunc != nil {
		return m.versionFunc()
	}
	return 0, false, nil
}

func (m *fakeMigrator) AppliedMigrations() ([]uint, error) {
	if m.appliedFunc != nil {
		return m.appliedFunc()
	}
	return nil, nil
}

func (m *fakeMigrator) PendingMigrations() ([]uint, error) {
	if m.pendingFunc != nil {
		return m.pendingFunc()
	}
	return nil, nil
}

func (m *fakeMigrator) Close() error {
	m.closed = true
	return nil
}

// fakeSessionSweeper implements SessionSweeper for testing.
type fakeSessionSweeper struct {
	deleted int64
	err     error
	calls   atomic.Int64
}

func (s *fakeSessionSweeper) CleanupExpired(_ context.Context) (int64, error) {
	s.calls.Add(1)
	return s.deleted, s.err
}

// fakeRetentionSweeper implements RetentionSweeper for testing.
type fakeRetentionSweeper struct {
	deleted  int64
	err      error
	runCalls atomic.Int64
	started  atomic.Bool
	stopped  atomic.Bool
}

func (r *fakeRetentionSweeper) RunOnce(_ context.Context) (int64, error) {
	r.runCalls.Add(1)
	return r.deleted, r.err
}

func (r *fakeRetentionSweeper) Start(_ context.Context) {
	r.started.Store(true)
}

func (r *fakeRetentionSweeper) Stop() {
	r.stopped.Store(true)
}

// fakeObsServer implements ObservabilityServer for testing.
type fakeObsServer struct {
	addr     string
	startErr error
	errCh    chan error
	started  atomic.Bool
	stopped  atomic.Bool
}

func (s *fakeObsServer) Start() (<-chan error, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.started.Store(true)
	if s.errCh == nil {
		s.errCh = make(chan error)
	}
	return s.errCh, nil
}

func (s *fakeObsServer) Stop(_ context.Context) error {
	s.stopped.Store(true)
	return nil
}

func (s *fakeObsServer) Addr() string {
	return s.addr
}
