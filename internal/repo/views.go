// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the derived read models: consistency-
// bounded projections recomputed from current store state on every call,
// never independently persisted or mutated.
//
// Views:
//
//   - PatientHistory: one row per session of a patient, newest start first,
//     with the prediction outcome (if any) and a prescription flag.
//   - ReviewQueue: FIFO triage queue of awaiting_review sessions annotated
//     with prediction and message/symptom counts.
//   - SessionOverview: denormalized display join of session × prediction ×
//     prescriptions × prescribing worker; multiplies rows per prescription.
//   - WorkerActivity: per active worker, totals and most recent activity
//     timestamps.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ihirwe/go-triage-backend/internal/domain"
)

// HistoryEntry is one row of a patient's consultation history.
type HistoryEntry struct {
	SessionID          uint      `json:"session_id"`
	StartedAt          time.Time `json:"started_at"`
	Status             string    `json:"status"`
	PredictedCondition *string   `json:"predicted_condition,omitempty"`
	RiskLevel          *string   `json:"risk_level,omitempty"`
	WasPrescribed      bool      `json:"was_prescribed"`
}

// PatientHistory returns every session ever opened for a patient, ordered
// by start time descending. Sessions without a prediction report null
// condition and risk; WasPrescribed is true iff at least one prescription
// exists for the session.
func PatientHistory(ctx context.Context, db *gorm.DB, patientID uint) ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := db.WithContext(ctx).Raw(`
		SELECT s.id AS session_id,
		       s.started_at,
		       s.status,
		       p.predicted_condition,
		       p.risk_level,
		       EXISTS (SELECT 1 FROM prescriptions rx WHERE rx.session_id = s.id) AS was_prescribed
		FROM sessions s
		LEFT JOIN predictions p ON p.session_id = s.id
		WHERE s.patient_id = ?
		ORDER BY s.started_at DESC, s.id DESC`, patientID).
		Scan(&out).Error
	return out, err
}

// ReviewQueueEntry annotates an awaiting_review session with its prediction
// and conversation volume.
type ReviewQueueEntry struct {
	SessionID          uint      `json:"session_id"`
	PatientID          uint      `json:"patient_id"`
	PatientName        string    `json:"patient_name"`
	StartedAt          time.Time `json:"started_at"`
	PredictedCondition *string   `json:"predicted_condition,omitempty"`
	RiskLevel          *string   `json:"risk_level,omitempty"`
	ConfidenceScore    *float64  `json:"confidence_score,omitempty"`
	PredictionID       *uint     `json:"prediction_id,omitempty"`
	SymptomCount       int64     `json:"symptom_count"`
	MessageCount       int64     `json:"message_count"`
}

// ReviewQueue returns exactly the sessions with status=awaiting_review,
// ordered oldest start first so the earliest-waiting patient surfaces
// first.
func ReviewQueue(ctx context.Context, db *gorm.DB) ([]ReviewQueueEntry, error) {
	var out []ReviewQueueEntry
	err := db.WithContext(ctx).Raw(`
		SELECT s.id AS session_id,
		       s.patient_id,
		       pa.full_name AS patient_name,
		       s.started_at,
		       p.predicted_condition,
		       p.risk_level,
		       p.confidence_score,
		       p.id AS prediction_id,
		       (SELECT COUNT(*) FROM symptoms sy WHERE sy.session_id = s.id) AS symptom_count,
		       (SELECT COUNT(*) FROM conversation_messages m WHERE m.session_id = s.id) AS message_count
		FROM sessions s
		JOIN patients pa ON pa.id = s.patient_id
		LEFT JOIN predictions p ON p.session_id = s.id
		WHERE s.status = ?
		ORDER BY s.started_at ASC, s.id ASC`, domain.SessionAwaitingReview).
		Scan(&out).Error
	return out, err
}

// OverviewRow is one line of the session overview join. A session with
// several prescriptions contributes several rows; the prescription columns
// are null for sessions without one.
type OverviewRow struct {
	SessionID          uint       `json:"session_id"`
	PatientID          uint       `json:"patient_id"`
	PatientName        string     `json:"patient_name"`
	Status             string     `json:"status"`
	StartedAt          time.Time  `json:"started_at"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
	PredictedCondition *string    `json:"predicted_condition,omitempty"`
	RiskLevel          *string    `json:"risk_level,omitempty"`
	ConfidenceScore    *float64   `json:"confidence_score,omitempty"`
	PrescriptionID     *uint      `json:"prescription_id,omitempty"`
	MedicationName     *string    `json:"medication_name,omitempty"`
	Dispensed          *bool      `json:"dispensed,omitempty"`
	PrescribedBy       *string    `json:"prescribed_by,omitempty"`
}

// SessionOverview returns the denormalized display join across all
// sessions, newest start first.
func SessionOverview(ctx context.Context, db *gorm.DB) ([]OverviewRow, error) {
	var out []OverviewRow
	err := db.WithContext(ctx).Raw(`
		SELECT s.id AS session_id,
		       s.patient_id,
		       pa.full_name AS patient_name,
		       s.status,
		       s.started_at,
		       s.ended_at,
		       p.predicted_condition,
		       p.risk_level,
		       p.confidence_score,
		       rx.id AS prescription_id,
		       rx.medication_name,
		       rx.dispensed,
		       w.full_name AS prescribed_by
		FROM sessions s
		JOIN patients pa ON pa.id = s.patient_id
		LEFT JOIN predictions p ON p.session_id = s.id
		LEFT JOIN prescriptions rx ON rx.session_id = s.id
		LEFT JOIN healthcare_workers w ON w.id = rx.worker_id
		ORDER BY s.started_at DESC, s.id DESC, rx.id ASC`).
		Scan(&out).Error
	return out, err
}

// ActivityRow summarizes one active worker's output.
type ActivityRow struct {
	WorkerID            uint       `json:"worker_id"`
	FullName            string     `json:"full_name"`
	Role                string     `json:"role"`
	PrescriptionsIssued int64      `json:"prescriptions_issued"`
	PredictionsReviewed int64      `json:"predictions_reviewed"`
	LastPrescribedAt    *time.Time `json:"last_prescribed_at,omitempty"`
	LastReviewedAt      *time.Time `json:"last_reviewed_at,omitempty"`
}

// WorkerActivity returns per-worker totals for every active worker,
// excluding deactivated ones. Latest timestamps are fetched with
// ORDER BY/LIMIT rather than MAX() to avoid MAX()->TEXT scans in SQLite.
func WorkerActivity(ctx context.Context, db *gorm.DB) ([]ActivityRow, error) {
	workers, err := ListActiveWorkers(ctx, db)
	if err != nil {
		return nil, err
	}

	out := make([]ActivityRow, 0, len(workers))
	for _, w := range workers {
		row := ActivityRow{WorkerID: w.ID, FullName: w.FullName, Role: w.Role}

		if err := db.WithContext(ctx).Model(&domain.Prescription{}).
			Where("worker_id = ?", w.ID).
			Count(&row.PrescriptionsIssued).Error; err != nil {
			return nil, err
		}
		if err := db.WithContext(ctx).Model(&domain.Prediction{}).
			Where("reviewed_by = ?", w.ID).
			Count(&row.PredictionsReviewed).Error; err != nil {
			return nil, err
		}

		if row.PrescriptionsIssued > 0 {
			var rx struct{ PrescribedAt time.Time }
			if err := db.WithContext(ctx).Model(&domain.Prescription{}).
				Select("prescribed_at").
				Where("worker_id = ?", w.ID).
				Order("prescribed_at DESC").
				Limit(1).
				Scan(&rx).Error; err != nil {
				return nil, err
			}
			row.LastPrescribedAt = &rx.PrescribedAt
		}
		if row.PredictionsReviewed > 0 {
			var pr struct{ ReviewedAt time.Time }
			if err := db.WithContext(ctx).Model(&domain.Prediction{}).
				Select("reviewed_at").
				Where("reviewed_by = ?", w.ID).
				Order("reviewed_at DESC").
				Limit(1).
				Scan(&pr).Error; err != nil {
				return nil, err
			}
			row.LastReviewedAt = &pr.ReviewedAt
		}

		out = append(out, row)
	}
	return out, nil
}
