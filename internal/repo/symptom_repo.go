// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Symptom
// model. Symptoms carry no ordering constraint among themselves; listings
// use recorded_at for a stable display order.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ihirwe/go-triage-backend/internal/domain"
)

// CreateSymptom inserts a symptom observation for a session.
func CreateSymptom(ctx context.Context, db *gorm.DB, sessionID uint, name string, severity, duration, notes *string) (*domain.Symptom, error) {
	now := time.Now().UTC()
	s := &domain.Symptom{
		SessionID:   sessionID,
		SymptomName: name,
		Severity:    severity,
		Duration:    duration,
		Notes:       notes,
		RecordedAt:  now,
		CreatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// ListSymptoms returns the symptoms of a session ordered by recording time.
func ListSymptoms(ctx context.Context, db *gorm.DB, sessionID uint) ([]domain.Symptom, error) {
	var out []domain.Symptom
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("recorded_at asc, id asc").
		Find(&out).Error
	return out, err
}

// CountSymptoms uses a raw COUNT so a missing table surfaces as an error.
func CountSymptoms(ctx context.Context, db *gorm.DB, sessionID uint) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM symptoms WHERE session_id = ?", sessionID).
		Scan(&total).Error
	return total, err
}
