// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tripdesk/tripdesk/internal/auth/postgres"
	"github.com/tripdesk/tripdesk/internal/config"
)

// Default timeout for database commands.
const defaultCommandTimeout = 30 * time.Second

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	return newSeedCmd(nil)
}

func newSeedCmd(deps *Deps) *cobra.Command {
	var (
		timeout time.Duration
		email   string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the bootstrap superadmin account",
		Long: `Creates the superadmin account named by auth.seed_email (or --email)
with the password in ` + config.EnvSeedPassword + `.
This command is idempotent - an existing account is left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, deps, email, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", defaultCommandTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().StringVar(&email, "email", "", "seed account email (default: auth.seed_email)")

	return cmd
}

func runSeed(cmd *cobra.Command, deps *Deps, email string, timeout time.Duration) error {
	deps = deps.withDefaults()
	rt, err := loadRuntime(cmd, deps.Getenv)
	if err != nil {
		return err
	}
	if email == "" {
		email = rt.cfg.Auth.SeedEmail
	}
	if email == "" {
		return oops.Code("CONFIG_INVALID").With("field", "auth.seed_email").Errorf("a seed email is required (auth.seed_email or --email)")
	}
	if rt.secrets.SeedPassword == "" {
		return oops.Code("CONFIG_INVALID").
			With("env", config.EnvSeedPassword).
			Errorf("%s environment variable is required", config.EnvSeedPassword)
	}
	if err := rt.secrets.RequireDatabase(); err != nil {
		return err
	}

	// cmd.Context() carries SIGINT/SIGTERM cancellation.
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	pool, err := deps.PoolOpener(ctx, rt.secrets.DatabaseURL, rt.poolOptions()...)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := offlineService(postgres.NewAccountRepository(pool), rt.logger)
	if err != nil {
		return err
	}
	created, err := svc.EnsureSeedAccount(ctx, email, rt.secrets.SeedPassword)
	if err != nil {
		return err
	}
	if created {
		cmd.Printf("Seed account %s created\n", email)
		return nil
	}
	cmd.Printf("Account %s already exists, skipping seed\n", email)
	return nil
}
