// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Prescription model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ihirwe/go-triage-backend/internal/domain"
)

// CreatePrescription inserts a prescription issued by a worker against a
// session. Both references must exist; a FK failure surfaces as
// ErrRestricted (the engine refuses dangling medical records).
func CreatePrescription(ctx context.Context, db *gorm.DB, sessionID, workerID uint, medication, dosage, instructions string, duration, notes *string) (*domain.Prescription, error) {
	rx := &domain.Prescription{
		SessionID:      sessionID,
		WorkerID:       workerID,
		MedicationName: medication,
		Dosage:         dosage,
		Instructions:   instructions,
		Duration:       duration,
		Notes:          notes,
		PrescribedAt:   time.Now().UTC(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rx).Error; err != nil {
		if isFKViolation(err) {
			return nil, ErrRestricted
		}
		return nil, err
	}
	return rx, nil
}

// GetPrescription fetches a prescription by id, or ErrNotFound.
func GetPrescription(ctx context.Context, db *gorm.DB, id uint) (*domain.Prescription, error) {
	var rx domain.Prescription
	if err := db.WithContext(ctx).First(&rx, id).Error; err != nil {
		return nil, err
	}
	return &rx, nil
}

// ListSessionPrescriptions returns the prescriptions of a session, oldest
// first. Zero or many per session.
func ListSessionPrescriptions(ctx context.Context, db *gorm.DB, sessionID uint) ([]domain.Prescription, error) {
	var out []domain.Prescription
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("prescribed_at asc, id asc").
		Find(&out).Error
	return out, err
}

// HasPrescription reports whether at least one prescription exists for a
// session.
func HasPrescription(ctx context.Context, db *gorm.DB, sessionID uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Prescription{}).
		Where("session_id = ?", sessionID).
		Count(&n).Error
	return n > 0, err
}

// MarkDispensed records that the medication was handed to the patient. The
// dispensed=false guard makes the call idempotent: repeating it affects no
// rows and keeps the original dispensed_at. ErrNotFound when the
// prescription does not exist.
func MarkDispensed(ctx context.Context, db *gorm.DB, id uint, dispensedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Prescription{}).
		Where("id = ? AND dispensed = ?", id, false).
		Updates(map[string]any{
			"dispensed":    true,
			"dispensed_at": dispensedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Prescription{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	if n == 0 {
		return false, gorm.ErrRecordNotFound
	}
	return false, nil
}
