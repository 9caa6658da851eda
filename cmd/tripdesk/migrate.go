// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package main

import (
	"encoding/json"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command and its subcommands.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the admin account schema",
		Long: `Apply, roll back and inspect the admin_accounts schema migrations.
Running migrate without a subcommand applies every pending migration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	})

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations, dropping every admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops all admin accounts; pass --yes to confirm")
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm dropping the schema")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if dirty {
					cmd.Printf("%d (dirty)\n", v)
					return nil
				}
				cmd.Println(v)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the schema version and pending migrations as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				status, err := m.Status()
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_VERSION").With("version", args[0]).Wrap(err)
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Schema version forced to %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func runMigrateUp(cmd *cobra.Command, deps *Deps) error {
	return withMigrator(cmd, deps, func(m Migrator) error {
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return err
		}
		v, _, err := m.Version()
		if err != nil {
			return err
		}
		cmd.Printf("Migrations completed successfully (version %d)\n", v)
		return nil
	})
}

// withMigrator opens a migrator from DATABASE_URL, runs fn and closes it.
func withMigrator(cmd *cobra.Command, deps *Deps, fn func(Migrator) error) (err error) {
	deps = deps.withDefaults()
	rt, err := loadRuntime(cmd, deps.Getenv)
	if err != nil {
		return err
	}
	if err := rt.secrets.RequireDatabase(); err != nil {
		return err
	}

	m, err := deps.MigratorFactory(rt.secrets.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}
