// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/keyward/keyward/internal/config"
)

// NewValidateConfigCmd creates the validate-config subcommand.
func NewValidateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config <file>",
		Short: "Validate a configuration file without starting anything",
		Long: `Validates a keyward.yaml configuration file against the generated
schema, then checks the fully merged configuration for semantic errors.
Does NOT require a database connection.
Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines to catch configuration errors early:
  keyward validate-config deploy/keyward.yaml

A file that receives its database URL at deploy time can be checked by
supplying a placeholder: --database.url postgres://localhost/keyward`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateConfig(cmd, args[0])
		},
	}
}

func runValidateConfig(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}

	// Schema first: it catches misspelled keys and type mismatches that
	// the merge would silently drop or coerce.
	if err := config.ValidateSchema(data); err != nil {
		slog.Error("schema validation failed", "detail", config.FormatSchemaError(err))
		return err
	}

	if _, err := config.Load(path, cmd.Flags()); err != nil {
		return err
	}

	slog.Info("configuration valid", "path", path)
	cmd.Println("Configuration is valid")
	return nil
}
