// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tripdesk/tripdesk/internal/observability"
	"github.com/tripdesk/tripdesk/internal/store"
)

// Deps contains injectable dependencies for the commands that touch the
// database. All fields with nil values use their default implementations.
type Deps struct {
	// Getenv reads secrets.
	// Default: os.Getenv
	Getenv func(string) string

	// PoolOpener connects to PostgreSQL.
	// Default: store.OpenPool
	PoolOpener func(ctx context.Context, dsn string, opts ...store.PoolOption) (*pgxpool.Pool, error)

	// MigratorFactory opens a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates the metrics and probe server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readiness observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Status() (*store.Status, error)
	Force(version int) error
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.Getenv == nil {
		out.Getenv = os.Getenv
	}
	if out.PoolOpener == nil {
		out.PoolOpener = store.OpenPool
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readiness observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, readiness, logger)
		}
	}
	return &out
}
