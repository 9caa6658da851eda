// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Default connection retry policy. Only the startup ping is retried.
const (
	DefaultConnectRetries = 5
	DefaultConnectBackoff = 200 * time.Millisecond
)

type poolOptions struct {
	maxConns int32
	retries  uint64
	backoff  time.Duration
	logger   *slog.Logger
}

// PoolOption configures OpenPool.
type PoolOption func(*poolOptions)

// WithMaxConns caps the pool size. Zero keeps the pgx default.
func WithMaxConns(n int32) PoolOption {
	return func(o *poolOptions) { o.maxConns = n }
}

// WithConnectRetry overrides how often and how patiently the first ping is
// retried.
func WithConnectRetry(retries uint64, backoff time.Duration) PoolOption {
	return func(o *poolOptions) {
		o.retries = retries
		o.backoff = backoff
	}
}

// WithPoolLogger logs each failed connection attempt.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(o *poolOptions) { o.logger = logger }
}

// OpenPool creates a pgx pool for dsn and waits until the database answers
// a ping, backing off exponentially between attempts.
func OpenPool(ctx context.Context, dsn string, opts ...PoolOption) (*pgxpool.Pool, error) {
	o := poolOptions{
		retries: DefaultConnectRetries,
		backoff: DefaultConnectBackoff,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if o.maxConns > 0 {
		cfg.MaxConns = o.maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := pingWithRetry(ctx, pool.Ping, o); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func pingWithRetry(ctx context.Context, ping func(context.Context) error, o poolOptions) error {
	attempt := 0
	backoff := retry.WithMaxRetries(o.retries, retry.NewExponential(o.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := ping(ctx); err != nil {
			o.logger.Warn("database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
