// Session HTTP handlers.
//
// This file exposes REST endpoints for consultation sessions and their
// conversation store:
//   - POST   /sessions                    (open for a patient)
//   - GET    /sessions/{id}               (fetch)
//   - POST   /sessions/{id}/messages      (append a conversation turn)
//   - GET    /sessions/{id}/messages      (list, paginated, sequence order)
//   - POST   /sessions/{id}/symptoms      (record a symptom)
//   - GET    /sessions/{id}/symptoms      (list)
//   - PATCH  /sessions/{id}/notes         (replace clinical notes)
//   - POST   /sessions/{id}/close         (complete, idempotent)
//   - DELETE /sessions/{id}               (remove with owned children)
//   - GET    /patients/{id}/sessions      (a patient's consultations)
//
// Idempotency: when the client supplies an Idempotency-Key header and a
// previous successful append exists for (session, key), the handler
// returns the recorded message and sets `Idempotency-Replayed: true`.
// Retried appends over flaky clinic links therefore cannot duplicate a
// conversation turn.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ihirwe/go-triage-backend/internal/domain"
	"github.com/ihirwe/go-triage-backend/internal/http/middleware"
	"github.com/ihirwe/go-triage-backend/internal/repo"
	"github.com/ihirwe/go-triage-backend/internal/utils"
)

//
// DTOs
//

// OpenSessionRequest is the JSON payload for opening a session.
type OpenSessionRequest struct {
	PatientID uint `json:"patient_id" binding:"required" example:"42"`
}

// PostMessageRequest is the JSON payload for appending a conversation turn.
type PostMessageRequest struct {
	// Sender is "patient" or "ml_system".
	Sender string `json:"sender" binding:"required" example:"patient"`
	// MessageText is the turn content. It must be non-empty.
	MessageText string `json:"message_text" binding:"required,min=1" example:"Mfite umuriro n'umutwe urambabaza"`
	// Metadata optionally carries a JSON blob from the dialogue engine.
	Metadata *string `json:"metadata,omitempty"`
}

// PostMessageResponse is the JSON envelope for a stored conversation turn.
type PostMessageResponse struct {
	Message *domain.ConversationMessage `json:"message"`
}

// RecordSymptomRequest is the JSON payload for recording a symptom.
type RecordSymptomRequest struct {
	SymptomName string  `json:"symptom_name" binding:"required" example:"fever"`
	Severity    *string `json:"severity,omitempty" example:"moderate"`
	Duration    *string `json:"duration,omitempty" example:"3 days"`
	Notes       *string `json:"notes,omitempty"`
}

// UpdateSessionNotesRequest is the JSON payload for replacing the clinical
// notes of a session. An empty string clears them.
type UpdateSessionNotesRequest struct {
	Notes *string `json:"notes" binding:"required" example:"patient reports improvement after 2 days"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListMessagesResponse contains a page of conversation turns and pagination
// metadata.
type ListMessagesResponse struct {
	Messages   []domain.ConversationMessage `json:"messages"`
	Pagination Pagination                   `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses page/page_size from query parameters, applies sane
// defaults and caps, and returns the validated (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// OpenSession starts a new consultation for an existing patient.
func (h *Handlers) OpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PatientID == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "patient_id required")
		return
	}

	sess, err := h.sessions.Open(c.Request.Context(), req.PatientID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, sess)
}

// GetSession fetches a session by id.
func (h *Handlers) GetSession(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	sess, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, sess)
}

// PostMessage appends a conversation turn to the session. The sequence
// number is assigned server-side; the stored message is returned.
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID, okID := pathID(c, "id")
	if !okID {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sender and message_text required")
		return
	}
	text := strings.TrimSpace(req.MessageText)
	if text == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message_text required")
		return
	}

	// Idempotency (replay path): the validated key is stashed by the
	// middleware when present.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, sessionID, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := repo.GetMessage(ctx, h.db, rec.MessageID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, PostMessageResponse{Message: prev})
				return
			}
		}
	}

	m, err := h.sessions.Append(ctx, sessionID, req.Sender, text, req.Metadata)
	if err != nil {
		failService(c, err)
		return
	}

	// Idempotency (store path): best effort, a failed insert only costs the
	// replay shortcut.
	if idemKey != "" && h.db != nil {
		_, _ = repo.CreateIdempotency(ctx, h.db, sessionID, idemKey, m.ID, http.StatusCreated, h.idemTTL)
	}

	ok(c, http.StatusCreated, PostMessageResponse{Message: m})
}

// ListMessages returns a page of the session dialogue in sequence order.
func (h *Handlers) ListMessages(c *gin.Context) {
	sessionID, okID := pathID(c, "id")
	if !okID {
		return
	}
	page, pageSize := clampPagination(c)

	items, total, err := h.sessions.MessagesPage(c.Request.Context(), sessionID, page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// RecordSymptom stores a structured symptom observation for the session.
func (h *Handlers) RecordSymptom(c *gin.Context) {
	sessionID, okID := pathID(c, "id")
	if !okID {
		return
	}

	var req RecordSymptomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "symptom_name required")
		return
	}

	sym, err := h.sessions.RecordSymptom(c.Request.Context(), sessionID, req.SymptomName, req.Severity, req.Duration, req.Notes)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, sym)
}

// ListSymptoms returns the symptoms recorded for the session.
func (h *Handlers) ListSymptoms(c *gin.Context) {
	sessionID, okID := pathID(c, "id")
	if !okID {
		return
	}
	syms, err := h.sessions.Symptoms(c.Request.Context(), sessionID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"symptoms": syms})
}

// UpdateSessionNotes replaces the free-text clinical notes on a session.
// Notes stay editable after the session completes; only the dialogue,
// symptoms, and status freeze at closure.
func (h *Handlers) UpdateSessionNotes(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}

	var req UpdateSessionNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Notes == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "notes required")
		return
	}

	sess, err := h.sessions.UpdateNotes(c.Request.Context(), id, *req.Notes)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, sess)
}

// ListPatientSessions returns every consultation opened for the patient,
// newest start first.
func (h *Handlers) ListPatientSessions(c *gin.Context) {
	patientID, okID := pathID(c, "id")
	if !okID {
		return
	}
	sessions, err := h.sessions.SessionsForPatient(c.Request.Context(), patientID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"sessions": sessions})
}

// CloseSession completes a session. Closing an already completed session
// succeeds and returns the unchanged record with its original end time.
func (h *Handlers) CloseSession(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	sess, err := h.workflow.Close(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, sess)
}

// DeleteSession removes a session with its messages, symptoms, and
// prediction. Sessions referenced by prescriptions are protected.
func (h *Handlers) DeleteSession(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
