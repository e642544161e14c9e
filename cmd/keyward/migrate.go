// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/keyward/keyward/internal/store"
)

// migrateConfig holds configuration for the migrate command.
type migrateConfig struct {
	steps int
	force string
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cfg := &migrateConfig{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Run pending database migrations against the PostgreSQL database.

By default all pending migrations are applied. Use --steps to apply a
fixed number (negative rolls back), or --force to stamp a schema version
after manually repairing a dirty database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateWithDeps(cmd, cfg, nil)
		},
	}

	cmd.Flags().IntVar(&cfg.steps, "steps", 0, "apply exactly n migrations (negative rolls back)")
	cmd.Flags().StringVar(&cfg.force, "force", "", "set the schema version without running migrations")

	return cmd
}

// runMigrateWithDeps executes the migrate command with injectable
// dependencies. If deps is nil, default implementations are used.
func runMigrateWithDeps(cmd *cobra.Command, cfg *migrateConfig, deps *MigrateDeps) error {
	if deps == nil {
		deps = &MigrateDeps{}
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(databaseURL string) (MigrationRunner, error) {
			return store.NewMigrator(databaseURL)
		}
	}

	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	migrator, err := deps.MigratorFactory(conf.Database.URL)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	switch {
	case cfg.force != "":
		forced, err := parseForceVersion(cfg.force)
		if err != nil {
			return err
		}
		cmd.Printf("Forcing schema version to %d...\n", forced)
		if err := migrator.Force(forced); err != nil {
			return err
		}
	case cfg.steps != 0:
		cmd.Printf("Applying %d migration step(s)...\n", cfg.steps)
		if err := migrator.Steps(cfg.steps); err != nil {
			return err
		}
	default:
		cmd.Println("Running migrations...")
		if err := migrator.Up(); err != nil {
			return err
		}
	}

	current, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	if dirty {
		cmd.Printf("Schema at version %d but dirty; repair and --force the version\n", current)
		return nil
	}
	cmd.Printf("Migrations completed, schema at version %d\n", current)
	return nil
}

// parseForceVersion parses the --force flag value into a schema version.
// The migrator rejects negative versions; parsing accepts them so the
// error names the real constraint.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").
			With("input", s).
			Errorf("force version must be an integer")
	}
	return version, nil
}
