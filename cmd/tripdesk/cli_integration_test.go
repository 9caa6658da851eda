//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgresContainer starts a PostgreSQL container for testing.
func startPostgresContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestCLI_MigrateSeedAndManageAccounts(t *testing.T) {
	isolateConfig(t)
	connStr := startPostgresContainer(t)
	t.Setenv("DATABASE_URL", connStr)
	t.Setenv("TRIPDESK_SEED_PASSWORD", "Sup3rSecret!")

	out, err := execute(t, "migrate", "up")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Migrations completed successfully")

	out, err = execute(t, "migrate", "version")
	require.NoError(t, err, out)
	assert.Equal(t, "2\n", out)

	out, err = execute(t, "seed", "--email", "Root@Tripdesk.test")
	require.NoError(t, err, out)
	assert.Contains(t, out, "created")

	out, err = execute(t, "seed", "--email", "root@tripdesk.test")
	require.NoError(t, err, out)
	assert.Contains(t, out, "already exists")

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	defer conn.Close(ctx)

	var (
		id, email, role, hash string
		active                bool
	)
	err = conn.QueryRow(ctx,
		`SELECT id, email, role, password_hash, is_active FROM admin_accounts`,
	).Scan(&id, &email, &role, &hash, &active)
	require.NoError(t, err)
	assert.Equal(t, "root@tripdesk.test", email)
	assert.Equal(t, "superadmin", role)
	assert.True(t, active)
	assert.Contains(t, hash, "$argon2id$")

	out, err = execute(t, "account", "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "root@tripdesk.test")

	out, err = execute(t, "account", "deactivate", id)
	require.NoError(t, err, out)
	require.NoError(t, conn.QueryRow(ctx, `SELECT is_active FROM admin_accounts WHERE id = $1`, id).Scan(&active))
	assert.False(t, active)

	out, err = execute(t, "migrate", "down", "--yes")
	require.NoError(t, err, out)
	var exists bool
	require.NoError(t, conn.QueryRow(ctx, `SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = 'admin_accounts'
	)`).Scan(&exists))
	assert.False(t, exists)
}
