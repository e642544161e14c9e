package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/keyward/keyward/internal/config"
	"github.com/keyward/keyward/internal/store"
)

// SchemaStatus holds the database and migration state for the status command.
type SchemaStatus struct {
	Database string   `json:"database"`
	Version  uint     `json:"version"`
	Dirty    bool     `json:"dirty,omitempty"`
	Applied  []string `json:"applied,omitempty"`
	Pending  []string `json:"pending,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand with all flags configured.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database and schema status",
		Long: `Show the health of the PostgreSQL database: connectivity, the current
schema version, and which migrations are applied and pending.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatusWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	// Register flags
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatusWithDeps executes the status command with injectable
// dependencies. If deps is nil, default implementations are used.
func runStatusWithDeps(ctx context.Context, cfg *statusConfig, cmd *cobra.Command, deps *StatusDeps) error {
	if deps == nil {
		deps = &StatusDeps{}
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(databaseURL string) (MigrationInspector, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if deps.Pinger == nil {
		deps.Pinger = pingDatabase
	}

	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	status := collectSchemaStatus(ctx, conf, deps)

	// Format and output the results
	var output string
	if cfg.jsonOutput {
		output, err = formatStatusJSON(status)
		if err != nil {
			return err
		}
	} else {
		output = formatStatusTable(status)
	}

	cmd.Println(output)
	return nil
}

// collectSchemaStatus queries connectivity and migration state. Failures
// are reported in the status rather than aborting the command, so an
// unreachable database still produces output.
func collectSchemaStatus(ctx context.Context, conf config.Config, deps *StatusDeps) SchemaStatus {
	status := SchemaStatus{Database: "reachable"}

	if err := deps.Pinger(ctx, conf.Database); err != nil {
		status.Database = "unreachable"
		status.Error = err.Error()
		return status
	}

	migrator, err := deps.MigratorFactory(conf.Database.URL)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer func() { _ = migrator.Close() }()

	current, dirty, err := migrator.Version()
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Version = current
	status.Dirty = dirty

	if applied, err := migrator.AppliedMigrations(); err == nil {
		status.Applied = describeMigrations(applied)
	}
	if pending, err := migrator.PendingMigrations(); err == nil {
		status.Pending = describeMigrations(pending)
	}

	return status
}

// pingDatabase verifies connectivity with a short-lived pool.
func pingDatabase(ctx context.Context, cfg config.Database) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := store.Connect(ctx, cfg.URL, cfg.ConnectTimeout)
	if err != nil {
		return err
	}
	pool.Close()
	return nil
}

// describeMigrations resolves versions to their NNNNNN_name form.
func describeMigrations(versions []uint) []string {
	names := make([]string, 0, len(versions))
	for _, v := range versions {
		name, err := store.MigrationName(v)
		if err != nil || name == "" {
			name = fmt.Sprintf("%06d_unknown", v)
		}
		names = append(names, name)
	}
	return names
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status SchemaStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "DATABASE\t%s\n", status.Database)
	if status.Error != "" {
		_, _ = fmt.Fprintf(w, "ERROR\t%s\n", status.Error)
		_ = w.Flush()
		return string(buf)
	}

	schema := fmt.Sprintf("version %d", status.Version)
	if status.Version == 0 {
		schema = "empty"
	}
	if status.Dirty {
		schema += " (dirty: manual repair needed)"
	}
	_, _ = fmt.Fprintf(w, "SCHEMA\t%s\n", schema)
	_, _ = fmt.Fprintf(w, "APPLIED\t%d\n", len(status.Applied))

	if len(status.Pending) == 0 {
		_, _ = fmt.Fprintf(w, "PENDING\tnone\n")
	} else {
		for i, name := range status.Pending {
			label := ""
			if i == 0 {
				label = "PENDING"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\n", label, name)
		}
	}

	_ = w.Flush()
	return string(buf)
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(status SchemaStatus) (string, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}

// byteWriter is a simple writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
