// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Prediction model.
//
// The one-prediction-per-session invariant lives in the unique index on
// session_id: a second insert fails with ErrDuplicate and leaves the first
// row untouched, regardless of caller interleaving.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ihirwe/go-triage-backend/internal/domain"
)

// CreatePrediction inserts the triage outcome for a session. A session
// that already has a prediction returns ErrDuplicate.
func CreatePrediction(ctx context.Context, db *gorm.DB, sessionID uint, condition, riskLevel string, confidence float64, modelVersion *string) (*domain.Prediction, error) {
	p := &domain.Prediction{
		SessionID:          sessionID,
		PredictedCondition: condition,
		RiskLevel:          riskLevel,
		ConfidenceScore:    confidence,
		ModelVersion:       modelVersion,
		GeneratedAt:        time.Now().UTC(),
		CreatedAt:          time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return p, nil
}

// GetPrediction fetches a prediction by id, or ErrNotFound.
func GetPrediction(ctx context.Context, db *gorm.DB, id uint) (*domain.Prediction, error) {
	var p domain.Prediction
	if err := db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetSessionPrediction fetches the prediction belonging to a session, or
// ErrNotFound when triage has not concluded for it.
func GetSessionPrediction(ctx context.Context, db *gorm.DB, sessionID uint) (*domain.Prediction, error) {
	var p domain.Prediction
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkReviewed fills the single review slot of a prediction. The
// reviewed_at IS NULL guard makes the write first-wins under concurrent
// reviewers: the second caller affects no rows and gets (false, nil).
// ErrNotFound when the prediction does not exist.
func MarkReviewed(ctx context.Context, db *gorm.DB, predictionID, workerID uint, reviewedAt time.Time, notes *string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Prediction{}).
		Where("id = ? AND reviewed_at IS NULL", predictionID).
		Updates(map[string]any{
			"reviewed_by":  workerID,
			"reviewed_at":  reviewedAt,
			"review_notes": notes,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Prediction{}).Where("id = ?", predictionID).Count(&n).Error; err != nil {
		return false, err
	}
	if n == 0 {
		return false, gorm.ErrRecordNotFound
	}
	return false, nil
}
