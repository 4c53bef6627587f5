// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Session
// model, including the guarded single-statement writes that keep the
// session state machine atomic under concurrent callers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ihirwe/go-triage-backend/internal/domain"
)

// CreateSession opens a consultation for a patient: status=active,
// started_at=now, no end time.
func CreateSession(ctx context.Context, db *gorm.DB, patientID uint) (*domain.Session, error) {
	s := &domain.Session{
		PatientID: patientID,
		StartedAt: time.Now().UTC(),
		Status:    domain.SessionActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession fetches a session by id, or ErrNotFound.
func GetSession(ctx context.Context, db *gorm.DB, id uint) (*domain.Session, error) {
	var s domain.Session
	if err := db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessionsByPatient returns every session ever opened for a patient,
// newest start first.
func ListSessionsByPatient(ctx context.Context, db *gorm.DB, patientID uint) ([]domain.Session, error) {
	var out []domain.Session
	err := db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("started_at desc").
		Find(&out).Error
	return out, err
}

// CloseSession atomically moves a session to completed and stamps its end
// time. The WHERE guard makes the call idempotent: a session that is
// already completed matches no rows and keeps its original end_time.
//
// Returns (true, nil) when this call performed the transition, (false, nil)
// when the session was already completed, and ErrNotFound when it does not
// exist.
func CloseSession(ctx context.Context, db *gorm.DB, id uint, endedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND status <> ?", id, domain.SessionCompleted).
		Updates(map[string]any{
			"status":   domain.SessionCompleted,
			"ended_at": endedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Session{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	if n == 0 {
		return false, gorm.ErrRecordNotFound
	}
	return false, nil
}

// SetPredictionCache writes the denormalized prediction fields and moves an
// active session to awaiting_review in one guarded UPDATE. The status
// filter keeps the transition legal: only active sessions move.
func SetPredictionCache(ctx context.Context, db *gorm.DB, id uint, label string, confidence float64) error {
	return db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND status = ?", id, domain.SessionActive).
		Updates(map[string]any{
			"prediction_label":      label,
			"prediction_confidence": confidence,
			"status":                domain.SessionAwaitingReview,
		}).Error
}

// UpdateSessionNotes replaces the free-text notes on a session.
func UpdateSessionNotes(ctx context.Context, db *gorm.DB, id uint, notes string) error {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Update("notes", notes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteSession removes a session and, through the CASCADE foreign keys,
// its messages, symptoms, and prediction. Prescriptions are RESTRICT: the
// engine rejects the delete while any prescription references the session,
// surfaced as ErrRestricted.
func DeleteSession(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.Session{}, id)
	if res.Error != nil {
		if isFKViolation(res.Error) {
			return ErrRestricted
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
