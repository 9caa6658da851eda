// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/tripdesk/tripdesk/internal/config"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration file format",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for config.yaml",
		Long: `Print the JSON Schema that config.yaml is validated against. Point an
editor's YAML language server at it for completion.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(schema, '\n'))
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Validate the configuration and print the effective values",
		Long: `Load the configuration the way serve does (defaults, then the file,
then flags), validate it and print the result as JSON. Secrets are read
from the environment and never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	})

	return cmd
}
