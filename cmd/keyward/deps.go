package main

import (
	"context"

	"github.com/keyward/keyward/internal/config"
	"github.com/keyward/keyward/internal/observability"
)

// MigrateDeps contains injectable dependencies for the migrate command.
// All fields with nil values will use their default implementations.
type MigrateDeps struct {
	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (MigrationRunner, error)
}

// StatusDeps contains injectable dependencies for the status command.
// All fields with nil values will use their default implementations.
type StatusDeps struct {
	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (MigrationInspector, error)

	// Pinger checks database connectivity.
	// Default: connects a short-lived pool and closes it.
	Pinger func(ctx context.Context, cfg config.Database) error
}

// SweepDeps contains injectable dependencies for the sweep command.
// All fields with nil values will use their default implementations.
type SweepDeps struct {
	// TargetsFactory builds the sweep targets from configuration.
	// Default: connects to PostgreSQL and wires the session service
	// and the audit retention worker.
	TargetsFactory func(ctx context.Context, conf config.Config) (*SweepTargets, func(), error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

// MigrationRunner interface wraps the store.Migrator methods used by migrate.
type MigrationRunner interface {
	Up() error
	Steps(n int) error
	Force(version int) error
	Version() (uint, bool, error)
	Close() error
}

// MigrationInspector interface wraps the store.Migrator methods used by status.
type MigrationInspector interface {
	Version() (uint, bool, error)
	AppliedMigrations() ([]uint, error)
	PendingMigrations() ([]uint, error)
	Close() error
}

// SessionSweeper interface wraps the session.Service cleanup used by sweep.
type SessionSweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// RetentionSweeper interface wraps the audit.RetentionWorker methods used by sweep.
type RetentionSweeper interface {
	RunOnce(ctx context.Context) (int64, error)
	Start(ctx context.Context)
	Stop()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// SweepTargets holds the workers the sweep command drives.
type SweepTargets struct {
	Sessions  SessionSweeper
	Retention RetentionSweeper

	// Ready reports whether the backing store is reachable. Serves as
	// the readiness check when sweep runs with --every.
	Ready observability.ReadinessChecker
}
