// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package store

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// Register the pgx/v5 driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

var embeddedVersions = sync.OnceValues(loadMigrationVersions)

// migrateIface is the subset of *migrate.Migrate the Migrator drives.
type migrateIface interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the embedded admin_accounts schema migrations.
type Migrator struct {
	m migrateIface
}

// Status is a snapshot of the schema state.
type Status struct {
	Version uint   `json:"version"`
	Name    string `json:"name,omitempty"`
	Dirty   bool   `json:"dirty"`
	Pending []uint `json:"pending,omitempty"`
}

// NewMigrator opens a migrator against databaseURL. postgres:// and
// postgresql:// URLs are accepted.
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "open embedded migrations").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}
	return &Migrator{m: m}, nil
}

// migrateURL rewrites libpq style schemes to the pgx5 scheme the driver
// registers under.
func migrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back every migration. The admin_accounts table and its data
// are dropped.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Steps migrates n versions up (n > 0) or down (n < 0).
func (m *Migrator) Steps(n int) error {
	if err := m.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_STEPS_FAILED").With("steps", n).Wrap(err)
	}
	return nil
}

// Version returns the applied version and whether the last migration
// failed midway. An empty database reports version 0.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force records version as applied without running anything. It is the
// recovery path for a dirty schema after a manual fix.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Status reports the current version, its name and the versions Up would
// apply.
func (m *Migrator) Status() (*Status, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return nil, err
	}
	name, err := MigrationName(version)
	if err != nil {
		return nil, err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return nil, err
	}
	return &Status{Version: version, Name: name, Dirty: dirty, Pending: pending}, nil
}

// Close releases the source and database handles.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	switch {
	case srcErr != nil && dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").
			With("component", "both").
			Errorf("source: %v; database: %v", srcErr, dbErr)
	case srcErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "source").Wrap(srcErr)
	case dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "database").Wrap(dbErr)
	}
	return nil
}

// PendingMigrations lists the versions above the applied one, ascending.
func (m *Migrator) PendingMigrations() ([]uint, error) {
	return m.filterVersions("get pending migrations", func(v, current uint) bool { return v > current })
}

// AppliedMigrations lists the versions at or below the applied one,
// ascending.
func (m *Migrator) AppliedMigrations() ([]uint, error) {
	return m.filterVersions("get applied migrations", func(v, current uint) bool { return v <= current })
}

func (m *Migrator) filterVersions(operation string, keep func(v, current uint) bool) ([]uint, error) {
	current, _, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", operation).Wrap(err)
	}
	all, err := embeddedVersions()
	if err != nil {
		return nil, oops.With("operation", operation).Wrap(err)
	}
	var out []uint
	for _, v := range all {
		if keep(v, current) {
			out = append(out, v)
		}
	}
	return out, nil
}

// MigrationName returns the NNNNNN_name stem of an embedded migration, or
// "" when no migration has that version.
func MigrationName(version uint) (string, error) {
	entries, err := migrationsFS.ReadDir(migrationsDir)
	if err != nil {
		return "", oops.Code("MIGRATION_READ_FAILED").With("operation", "read migrations dir").Wrap(err)
	}
	prefix := fmt.Sprintf("%06d_", version)
	for _, entry := range entries {
		if stem, ok := strings.CutSuffix(entry.Name(), ".up.sql"); ok && strings.HasPrefix(stem, prefix) {
			return stem, nil
		}
	}
	return "", nil
}

// loadMigrationVersions parses the versions of the embedded up migrations.
// Files that do not follow NNNNNN_name.up.sql are skipped with a warning.
func loadMigrationVersions() ([]uint, error) {
	entries, err := migrationsFS.ReadDir(migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("operation", "read migrations dir").Wrap(err)
	}

	var versions []uint
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		var version uint
		if _, err := fmt.Sscanf(name, "%06d", &version); err != nil {
			slog.Warn("skipping migration with unexpected file name",
				"filename", name,
				"expected_format", "NNNNNN_name.up.sql",
				"error", err)
			continue
		}
		if !slices.Contains(versions, version) {
			versions = append(versions, version)
		}
	}
	slices.Sort(versions)
	return versions, nil
}
