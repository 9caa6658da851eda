// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tripdesk/tripdesk/internal/store"
)

func TestAccountStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Account Store Integration Suite")
}

type testEnv struct {
	ctx       context.Context
	container testcontainers.Container
	pool      *pgxpool.Pool
}

var env *testEnv

var _ = BeforeSuite(func() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("tripdesk_test"),
		postgres.WithUsername("tripdesk"),
		postgres.WithPassword("tripdesk"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())
	env = &testEnv{ctx: ctx, container: container}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(dsn)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	env.pool, err = store.OpenPool(ctx, dsn)
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env == nil {
		return
	}
	if env.pool != nil {
		env.pool.Close()
	}
	_ = env.container.Terminate(env.ctx)
})

func truncate() {
	_, err := env.pool.Exec(env.ctx, "TRUNCATE admin_accounts")
	Expect(err).NotTo(HaveOccurred())
}
