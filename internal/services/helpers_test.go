package services

import (
	"context"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/ihirwe/go-triage-backend/internal/domain"
	"github.com/ihirwe/go-triage-backend/internal/repo"
)

// newServiceDB opens a migrated temp SQLite database for service tests.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "services_test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mustPatient(t *testing.T, db *gorm.DB) *domain.Patient {
	t.Helper()
	p, err := NewRegistryService(db).RegisterPatient(context.Background(), "Aline Uwase", "+250788000001", "", nil)
	if err != nil {
		t.Fatalf("register patient: %v", err)
	}
	return p
}

func mustWorker(t *testing.T, db *gorm.DB) *domain.HealthcareWorker {
	t.Helper()
	w, err := NewRegistryService(db).RegisterWorker(context.Background(), "Jean Mugisha", domain.RoleDoctor, nil, nil, nil)
	if err != nil {
		t.Fatalf("register worker: %v", err)
	}
	return w
}

func mustSession(t *testing.T, db *gorm.DB, patientID uint) *domain.Session {
	t.Helper()
	s, err := NewSessionService(db).Open(context.Background(), patientID)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return s
}

func sptr(s string) *string { return &s }

// isValidation reports whether err is a field validation failure for field.
func isValidation(t *testing.T, err error, field string) bool {
	t.Helper()
	ve, ok := err.(*ValidationError)
	return ok && ve.Field == field
}
