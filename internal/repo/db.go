// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/ihirwe/go-triage-backend/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
// Foreign keys must be ON: the restrict/cascade rules on patients, sessions
// and prescriptions are enforced by the engine, not by callers.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	// _pragma DSN parameters apply to every pooled connection; a plain
	// Exec("PRAGMA ...") would only configure the connection it runs on.
	dsn := path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	// SQL-level tracing (no metrics; the Prometheus middleware covers HTTP).
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or upgrades the six entity tables plus the
// idempotency table. Order matters for foreign keys: referenced tables
// first.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Patient{},
		&domain.HealthcareWorker{},
		&domain.Session{},
		&domain.ConversationMessage{},
		&domain.Symptom{},
		&domain.Prediction{},
		&domain.Prescription{},
		&domain.Idempotency{},
	)
}
