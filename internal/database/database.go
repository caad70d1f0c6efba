// Package database opens the SQLite database and applies schema migrations
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tildaslashalef/plansync/internal/config"
	"github.com/tildaslashalef/plansync/internal/loggy"
	"github.com/tildaslashalef/plansync/internal/migrations"
)

// Open opens the database described by cfg and verifies the connection
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	loggy.Info("Opening database", "path", cfg.Path)

	db, err := sql.Open("sqlite3", buildSQLiteDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetConnMaxLifetime(cfg.ConnMaxLife)
	db.SetMaxOpenConns(1) // SQLite supports only one writer at a time
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// buildSQLiteDSN builds a SQLite DSN with additional parameters
func buildSQLiteDSN(cfg *config.DatabaseConfig) string {
	if cfg.Path == ":memory:" || strings.HasPrefix(cfg.Path, "file::memory:") {
		return cfg.Path
	}

	params := url.Values{}
	params.Add("_busy_timeout", strconv.Itoa(cfg.BusyTimeout))
	params.Add("_journal_mode", cfg.JournalMode)
	params.Add("_synchronous", cfg.SynchronousMode)
	if cfg.CacheSize != 0 {
		params.Add("_cache_size", strconv.Itoa(cfg.CacheSize))
	}
	params.Add("_foreign_keys", strconv.FormatBool(cfg.ForeignKeys))

	return fmt.Sprintf("%s?%s", cfg.Path, params.Encode())
}

// newMigrate builds a migrate instance over the embedded migrations.
// The instance must not be closed: its sqlite3 driver would close db.
func newMigrate(db *sql.DB) (*migrate.Migrate, func(), error) {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	src, err := migrations.GetSource()
	if err != nil {
		return nil, nil, err
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return m, func() { src.Close() }, nil
}

// RunMigrations applies all pending migrations. It reports whether any
// migration was applied.
func RunMigrations(db *sql.DB) (bool, error) {
	m, done, err := newMigrate(db)
	if err != nil {
		return false, err
	}
	defer done()

	applied := true
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			loggy.Error("Failed to apply migrations", "error", err)
			return false, fmt.Errorf("failed to apply migrations: %w", err)
		}
		applied = false
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return applied, fmt.Errorf("failed to get migration version: %w", err)
	}

	loggy.Info("Database migration complete", "version", version, "dirty", dirty, "applied", applied)
	return applied, nil
}

// RevertMigrations reverts the given number of migration steps
func RevertMigrations(db *sql.DB, steps int) error {
	m, done, err := newMigrate(db)
	if err != nil {
		return err
	}
	defer done()

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		loggy.Error("Failed to revert migrations", "error", err)
		return fmt.Errorf("failed to revert migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	loggy.Info("Database migration reversion complete", "version", version, "dirty", dirty)
	return nil
}
