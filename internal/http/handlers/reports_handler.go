// Report HTTP handlers.
//
// This file exposes the derived read models used by clinic dashboards:
//   - GET /patients/{id}/history      (consultations, newest first)
//   - GET /reports/review-queue       (sessions awaiting review, FIFO)
//   - GET /reports/sessions           (denormalized overview join)
//   - GET /reports/worker-activity    (per-worker totals)
//
// All four are computed from the base tables on demand; none of them is
// materialized, so they can never go stale.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ihirwe/go-triage-backend/internal/repo"
)

// PatientHistory returns the consultation history of a patient, newest
// start first, including sessions without a prediction or prescription.
func (h *Handlers) PatientHistory(c *gin.Context) {
	patientID, okID := pathID(c, "id")
	if !okID {
		return
	}
	entries, err := h.workflow.PatientHistory(c.Request.Context(), patientID)
	if err != nil {
		failService(c, err)
		return
	}
	if entries == nil {
		entries = []repo.HistoryEntry{}
	}
	ok(c, http.StatusOK, gin.H{"history": entries})
}

// ReviewQueue returns the sessions awaiting human review, oldest first, so
// the longest-waiting patient is served next.
func (h *Handlers) ReviewQueue(c *gin.Context) {
	entries, err := h.workflow.ReviewQueue(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	if entries == nil {
		entries = []repo.ReviewQueueEntry{}
	}
	ok(c, http.StatusOK, gin.H{"queue": entries})
}

// SessionOverview returns the denormalized join of sessions with patient,
// prediction, and prescription data for display.
func (h *Handlers) SessionOverview(c *gin.Context) {
	rows, err := h.workflow.SessionOverview(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	if rows == nil {
		rows = []repo.OverviewRow{}
	}
	ok(c, http.StatusOK, gin.H{"sessions": rows})
}

// WorkerActivity returns review and prescription totals per active worker,
// including workers with no activity yet.
func (h *Handlers) WorkerActivity(c *gin.Context) {
	rows, err := h.workflow.WorkerActivity(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	if rows == nil {
		rows = []repo.ActivityRow{}
	}
	ok(c, http.StatusOK, gin.H{"workers": rows})
}
