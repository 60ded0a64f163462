// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping for the two
// supported drivers (SQLite via the pure-Go driver, PostgreSQL) and schema
// migrations.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/mkovtun/go-exchange-backend/internal/config"
	"github.com/mkovtun/go-exchange-backend/internal/domain"
)

// Open connects to the configured database, applies driver-specific tuning,
// and optionally installs the GORM OpenTelemetry plugin.
func Open(dbCfg config.DBConfig, traced bool) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch dbCfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dbCfg.DSN,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Error),
		})
	case "sqlite":
		db, err = openSQLite(dbCfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", dbCfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if traced {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// openSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func openSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite
	// "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	return db, nil
}

// AutoMigrate creates or updates the schema for all domain models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.ExchangeRequest{},
		&domain.PromoCode{},
		&domain.Chat{},
		&domain.ChatMessage{},
		&domain.IntakeForm{},
	)
}
