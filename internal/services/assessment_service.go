// Package services – AssessmentService
//
// This file implements the assessment store: the triage prediction (one
// per session), its human review, and prescriptions. RecordPrediction is
// the only writer of the session's denormalized prediction cache; the
// prediction row, the cache fields, and the active→awaiting_review
// transition commit in one transaction so no intermediate state is ever
// observable.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ihirwe/go-triage-backend/internal/domain"
	"github.com/ihirwe/go-triage-backend/internal/repo"
)

// AssessmentService manages predictions, reviews, and prescriptions.
type AssessmentService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewAssessmentService constructs an AssessmentService.
func NewAssessmentService(db *gorm.DB) *AssessmentService {
	return &AssessmentService{DB: db}
}

// RecordPrediction stores the triage outcome for a session and moves the
// session from active to awaiting_review. A second prediction for the same
// session fails with ErrDuplicatePrediction and leaves the first one, and
// the session cache, unchanged. Completed sessions reject predictions.
func (s *AssessmentService) RecordPrediction(ctx context.Context, sessionID uint, condition, riskLevel string, confidence float64, modelVersion *string) (*domain.Prediction, error) {
	tr := otel.Tracer("services/AssessmentService")
	ctx, span := tr.Start(ctx, "RecordPrediction",
		trace.WithAttributes(
			attribute.Int64("session.id", int64(sessionID)),
			attribute.String("risk_level", riskLevel),
		),
	)
	defer span.End()

	if condition == "" {
		return nil, invalidField("predicted_condition", "must not be empty")
	}
	switch riskLevel {
	case domain.RiskLow, domain.RiskMedium, domain.RiskHigh:
	default:
		return nil, invalidField("risk_level", "must be low, medium, or high")
	}
	if confidence < 0 || confidence > 1 {
		return nil, invalidField("confidence_score", "must be between 0 and 1")
	}

	var pred *domain.Prediction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := repo.GetSession(ctx, tx, sessionID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if sess.IsCompleted() {
			return ErrSessionCompleted
		}

		p, err := repo.CreatePrediction(ctx, tx, sessionID, condition, riskLevel, confidence, modelVersion)
		if err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicatePrediction
			}
			return err
		}
		pred = p

		return repo.SetPredictionCache(ctx, tx, sessionID, condition, confidence)
	})
	if err != nil {
		return nil, err
	}
	return pred, nil
}

// SessionPrediction returns the prediction recorded for a session.
func (s *AssessmentService) SessionPrediction(ctx context.Context, sessionID uint) (*domain.Prediction, error) {
	p, err := repo.GetSessionPrediction(ctx, s.DB, sessionID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPredictionNotFound
	}
	return p, err
}

// Review fills the single review slot of a prediction with the reviewer,
// the review time, and optional notes. The reviewer must be an active
// worker. A second review fails with ErrPredictionReviewed; amending a
// review is not supported. Review is permitted after session closure.
func (s *AssessmentService) Review(ctx context.Context, predictionID, reviewerID uint, notes *string) (*domain.Prediction, error) {
	tr := otel.Tracer("services/AssessmentService")
	ctx, span := tr.Start(ctx, "Review",
		trace.WithAttributes(
			attribute.Int64("prediction.id", int64(predictionID)),
			attribute.Int64("reviewer.id", int64(reviewerID)),
		),
	)
	defer span.End()

	w, err := repo.GetWorker(ctx, s.DB, reviewerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrWorkerNotFound
		}
		return nil, err
	}
	if !w.IsActive {
		return nil, ErrWorkerInactive
	}

	applied, err := repo.MarkReviewed(ctx, s.DB, predictionID, reviewerID, time.Now().UTC(), notes)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPredictionNotFound
		}
		return nil, err
	}
	if !applied {
		return nil, ErrPredictionReviewed
	}
	return repo.GetPrediction(ctx, s.DB, predictionID)
}

// Prescribe issues a prescription against a session by an active worker.
// It validates the mandatory fields and does not change session status.
func (s *AssessmentService) Prescribe(ctx context.Context, sessionID, workerID uint, medication, dosage, instructions string, duration, notes *string) (*domain.Prescription, error) {
	tr := otel.Tracer("services/AssessmentService")
	ctx, span := tr.Start(ctx, "Prescribe",
		trace.WithAttributes(
			attribute.Int64("session.id", int64(sessionID)),
			attribute.Int64("worker.id", int64(workerID)),
		),
	)
	defer span.End()

	if medication == "" {
		return nil, invalidField("medication_name", "must not be empty")
	}
	if dosage == "" {
		return nil, invalidField("dosage", "must not be empty")
	}
	if instructions == "" {
		return nil, invalidField("instructions", "must not be empty")
	}

	if _, err := repo.GetSession(ctx, s.DB, sessionID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	w, err := repo.GetWorker(ctx, s.DB, workerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrWorkerNotFound
		}
		return nil, err
	}
	if !w.IsActive {
		return nil, ErrWorkerInactive
	}

	return repo.CreatePrescription(ctx, s.DB, sessionID, workerID, medication, dosage, instructions, duration, notes)
}

// SessionPrescriptions lists the prescriptions issued against a session.
func (s *AssessmentService) SessionPrescriptions(ctx context.Context, sessionID uint) ([]domain.Prescription, error) {
	return repo.ListSessionPrescriptions(ctx, s.DB, sessionID)
}

// MarkDispensed records the hand-over of the medication. Idempotent:
// marking an already dispensed prescription is a no-op, and the original
// dispensed_at is preserved. Dispensation bookkeeping stays legal after
// session closure.
func (s *AssessmentService) MarkDispensed(ctx context.Context, prescriptionID uint) error {
	_, err := repo.MarkDispensed(ctx, s.DB, prescriptionID, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return ErrPrescriptionNotFound
	}
	return err
}
