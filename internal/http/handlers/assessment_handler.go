// Assessment HTTP handlers.
//
// This file exposes REST endpoints for triage predictions, their human
// review, and prescriptions:
//   - POST /sessions/{id}/prediction       (record, one per session)
//   - GET  /sessions/{id}/prediction       (fetch)
//   - POST /predictions/{id}/review        (one-time human validation)
//   - POST /sessions/{id}/prescriptions    (issue)
//   - GET  /sessions/{id}/prescriptions    (list)
//   - POST /prescriptions/{id}/dispense    (mark handed over, idempotent)
//
// A second prediction for a session returns 409 conflict; a second review
// of a prediction returns 409 invalid_state. Both leave the stored record
// untouched, so clients recover by re-fetching, not retrying.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ihirwe/go-triage-backend/internal/domain"
)

//
// DTOs
//

// RecordPredictionRequest is the JSON payload for recording a triage
// prediction. Confidence uses a pointer so that an explicit 0 is
// distinguishable from an absent field.
type RecordPredictionRequest struct {
	PredictedCondition string   `json:"predicted_condition" binding:"required" example:"malaria"`
	RiskLevel          string   `json:"risk_level" binding:"required" example:"high"`
	ConfidenceScore    *float64 `json:"confidence_score" binding:"required" example:"0.87"`
	ModelVersion       *string  `json:"model_version,omitempty" example:"triage-v2.3"`
}

// ReviewPredictionRequest is the JSON payload for reviewing a prediction.
type ReviewPredictionRequest struct {
	WorkerID uint    `json:"worker_id" binding:"required" example:"7"`
	Notes    *string `json:"notes,omitempty" example:"agree with assessment, start treatment"`
}

// PrescribeRequest is the JSON payload for issuing a prescription.
type PrescribeRequest struct {
	WorkerID       uint    `json:"worker_id" binding:"required" example:"7"`
	MedicationName string  `json:"medication_name" binding:"required" example:"Coartem"`
	Dosage         string  `json:"dosage" binding:"required" example:"80/480mg twice daily"`
	Instructions   string  `json:"instructions" binding:"required" example:"take with food"`
	Duration       *string `json:"duration,omitempty" example:"3 days"`
	Notes          *string `json:"notes,omitempty"`
}

//
// Handlers
//

// RecordPrediction stores the triage outcome for the session and moves it
// to awaiting_review. Returns 409 conflict when a prediction already
// exists.
func (h *Handlers) RecordPrediction(c *gin.Context) {
	sessionID, okID := pathID(c, "id")
	if !okID {
		return
	}

	var req RecordPredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ConfidenceScore == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "predicted_condition, risk_level, and confidence_score required")
		return
	}

	p, err := h.assessments.RecordPrediction(c.Request.Context(), sessionID, req.PredictedCondition, req.RiskLevel, *req.ConfidenceScore, req.ModelVersion)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// GetPrediction returns the prediction recorded for the session, 404 when
// none exists yet.
func (h *Handlers) GetPrediction(c *gin.Context) {
	sessionID, okID := pathID(c, "id")
	if !okID {
		return
	}
	p, err := h.assessments.SessionPrediction(c.Request.Context(), sessionID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// ReviewPrediction records the one-time human validation of a prediction
// by an active worker.
func (h *Handlers) ReviewPrediction(c *gin.Context) {
	predictionID, okID := pathID(c, "id")
	if !okID {
		return
	}

	var req ReviewPredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.WorkerID == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "worker_id required")
		return
	}

	p, err := h.assessments.Review(c.Request.Context(), predictionID, req.WorkerID, req.Notes)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// Prescribe issues a prescription against the session by an active worker.
func (h *Handlers) Prescribe(c *gin.Context) {
	sessionID, okID := pathID(c, "id")
	if !okID {
		return
	}

	var req PrescribeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.WorkerID == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "worker_id, medication_name, dosage, and instructions required")
		return
	}

	rx, err := h.assessments.Prescribe(c.Request.Context(), sessionID, req.WorkerID, req.MedicationName, req.Dosage, req.Instructions, req.Duration, req.Notes)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, rx)
}

// ListPrescriptions lists the prescriptions issued against the session.
func (h *Handlers) ListPrescriptions(c *gin.Context) {
	sessionID, okID := pathID(c, "id")
	if !okID {
		return
	}
	// 404 for unknown sessions rather than an empty list.
	if _, err := h.sessions.Get(c.Request.Context(), sessionID); err != nil {
		failService(c, err)
		return
	}
	rxs, err := h.assessments.SessionPrescriptions(c.Request.Context(), sessionID)
	if err != nil {
		failService(c, err)
		return
	}
	if rxs == nil {
		rxs = []domain.Prescription{}
	}
	ok(c, http.StatusOK, gin.H{"prescriptions": rxs})
}

// DispensePrescription marks a prescription as handed over. Dispensing an
// already dispensed prescription succeeds and preserves the original
// dispensed_at.
func (h *Handlers) DispensePrescription(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.assessments.MarkDispensed(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
