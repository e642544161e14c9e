package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/keyward/keyward/internal/config"
	"github.com/keyward/keyward/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the keyward CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyward",
		Short: "Keyward - account credential and session security",
		Long: `Keyward manages account credentials, session lifecycle, and login
risk analysis on PostgreSQL, backed by an append-only audit trail.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (defaults to the XDG config file when present)")

	// Config overrides. Defaults mirror config.Default so that flags a
	// user never touches cannot displace values set in the config file.
	defaults := config.Default()
	pf := cmd.PersistentFlags()
	pf.String("log.level", defaults.Log.Level, "log level (debug, info, warn, error)")
	pf.String("log.format", defaults.Log.Format, "log format (json, text)")
	pf.String("database.url", defaults.Database.URL, "PostgreSQL connection URL")
	pf.String("observability.addr", defaults.Observability.Addr, "metrics/health HTTP address (empty = disabled)")

	// Add subcommands
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewValidateConfigCmd())

	return cmd
}

// loadConfig builds the layered configuration for a subcommand:
// defaults, then the config file, then explicit flag overrides. Without
// --config, the XDG config file is used when it exists.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configFile
	if path == "" {
		if candidate := xdg.ConfigFile(); fileExists(candidate) {
			path = candidate
		}
	}
	return config.Load(path, cmd.Flags())
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
