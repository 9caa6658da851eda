// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package main

import (
	"crypto/rand"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tripdesk/tripdesk/internal/auth"
	"github.com/tripdesk/tripdesk/internal/auth/postgres"
	"github.com/tripdesk/tripdesk/internal/config"
	"github.com/tripdesk/tripdesk/internal/logging"
	"github.com/tripdesk/tripdesk/internal/store"
)

const serviceName = "tripdesk"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Tripdesk CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tripdesk",
		Short: "Tripdesk - travel booking admin console backend",
		Long: `Tripdesk serves the admin console authentication API: password and
Google sign-in, lockout, password reset and session tokens.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/tripdesk/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewAccountCmd())

	return cmd
}

// runtimeEnv is what every subcommand loads before doing work.
type runtimeEnv struct {
	cfg     *config.Config
	secrets config.Secrets
	logger  *slog.Logger
}

func loadRuntime(cmd *cobra.Command, getenv func(string) string) (*runtimeEnv, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)
	return &runtimeEnv{cfg: cfg, secrets: config.LoadSecrets(getenv), logger: logger}, nil
}

// poolOptions translates the database section into pool options.
func (rt *runtimeEnv) poolOptions() []store.PoolOption {
	opts := []store.PoolOption{
		store.WithConnectRetry(uint64(rt.cfg.Database.ConnectRetries), store.DefaultConnectBackoff), //nolint:gosec // validated non-negative
		store.WithPoolLogger(rt.logger),
	}
	if rt.cfg.Database.MaxConns > 0 {
		opts = append(opts, store.WithMaxConns(rt.cfg.Database.MaxConns))
	}
	return opts
}

// offlineService builds a Service for commands that manage accounts but
// never issue sessions, so no signing secret is required.
func offlineService(repo *postgres.AccountRepository, logger *slog.Logger) (*auth.Service, error) {
	secret := make([]byte, auth.MinSessionSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, oops.Code("SECRET_GENERATION_FAILED").Wrap(err)
	}
	issuer, err := auth.NewSessionIssuer(secret)
	if err != nil {
		return nil, err
	}
	return auth.NewAuthService(repo, auth.NewArgon2idHasher(), issuer, auth.WithLogger(logger))
}
