// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and Postgres, plus schema migrations.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-location-broker/internal/config"
	"github.com/tbourn/go-location-broker/internal/domain"
)

// Open connects to the backend selected by cfg.Driver, applies migrations and,
// when traced is true, installs the GORM OpenTelemetry plugin.
func Open(cfg config.DBConfig, traced bool) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = ConnectPostgresWithRetry(cfg.DSN, cfg.ConnAttempts, cfg.ConnDelay)
	case "sqlite", "":
		db, err = OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if traced {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("install gorm tracing: %w", err)
		}
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// ConnectPostgresWithRetry opens a Postgres connection, retrying while the
// server is still coming up.
func ConnectPostgresWithRetry(dsn string, attempts int, delay time.Duration) (*gorm.DB, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			return db, nil
		}
		lastErr = err
		if i < attempts {
			time.Sleep(delay)
		}
	}
	return nil, fmt.Errorf("db connect failed after %d attempts: %w", attempts, lastErr)
}

// AutoMigrate creates or updates the schema for all broker tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Datalogger{},
		&domain.User{},
		&domain.Trackpoint{},
	)
}
