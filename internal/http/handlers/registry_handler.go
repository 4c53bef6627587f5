// Registry HTTP handlers.
//
// This file exposes REST endpoints for the identity registry:
//   - POST   /patients              (register, idempotent on phone+name)
//   - GET    /patients              (list by phone)
//   - GET    /patients/lookup       (find by phone + full name)
//   - GET    /patients/{id}         (fetch)
//   - PATCH  /patients/{id}         (partial profile edit)
//   - DELETE /patients/{id}         (remove, rejected while sessions exist)
//   - POST   /workers               (onboard)
//   - GET    /workers               (list active)
//   - GET    /workers/{id}          (fetch)
//   - DELETE /workers/{id}          (deactivate, idempotent)
//
// Handlers are transport-thin: they validate input shape, call application
// services, and translate results into HTTP responses. Field-level
// validation lives in the service layer.
//
// This file also declares the service contracts consumed by all handlers
// in the package and the Handlers wiring type.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ihirwe/go-triage-backend/internal/domain"
	"github.com/ihirwe/go-triage-backend/internal/repo"
)

//
// Service contracts (context-aware)
//

// RegistryService defines identity operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RegistryService interface {
	// RegisterPatient creates or returns the patient with this phone+name.
	RegisterPatient(ctx context.Context, fullName, phone, preferredLanguage string, location *string) (*domain.Patient, error)
	// FindPatient looks up a patient by the (phone, name) identity pair.
	FindPatient(ctx context.Context, phone, fullName string) (*domain.Patient, error)
	// GetPatient fetches a patient by id.
	GetPatient(ctx context.Context, id uint) (*domain.Patient, error)
	// UpdatePatient applies partial profile edits; nil fields are untouched.
	UpdatePatient(ctx context.Context, id uint, fullName, phone, preferredLanguage, location *string) (*domain.Patient, error)
	// PatientsByPhone lists the patients registered under a phone number.
	PatientsByPhone(ctx context.Context, phone string) ([]domain.Patient, error)
	// DeletePatient removes a patient without consultation history.
	DeletePatient(ctx context.Context, id uint) error
	// RegisterWorker onboards a healthcare worker.
	RegisterWorker(ctx context.Context, fullName, role string, specialization, facility, contact *string) (*domain.HealthcareWorker, error)
	// GetWorker fetches a worker by id.
	GetWorker(ctx context.Context, id uint) (*domain.HealthcareWorker, error)
	// ListActiveWorkers returns all workers not yet deactivated.
	ListActiveWorkers(ctx context.Context) ([]domain.HealthcareWorker, error)
	// DeactivateWorker soft-deletes a worker; idempotent.
	DeactivateWorker(ctx context.Context, id uint) error
}

// SessionService defines conversation store operations.
type SessionService interface {
	// Open starts a session for an existing patient.
	Open(ctx context.Context, patientID uint) (*domain.Session, error)
	// Get fetches a session by id.
	Get(ctx context.Context, id uint) (*domain.Session, error)
	// Append stores the next conversation turn with its sequence number.
	Append(ctx context.Context, sessionID uint, sender, text string, metadata *string) (*domain.ConversationMessage, error)
	// RecordSymptom stores a structured symptom observation.
	RecordSymptom(ctx context.Context, sessionID uint, name string, severity, duration, notes *string) (*domain.Symptom, error)
	// MessagesPage returns a page of the dialogue and the total count.
	MessagesPage(ctx context.Context, sessionID uint, page, pageSize int) ([]domain.ConversationMessage, int64, error)
	// Symptoms returns the symptoms recorded for a session.
	Symptoms(ctx context.Context, sessionID uint) ([]domain.Symptom, error)
	// SessionsForPatient lists a patient's consultations, newest first.
	SessionsForPatient(ctx context.Context, patientID uint) ([]domain.Session, error)
	// UpdateNotes replaces the free-text clinical notes on a session.
	UpdateNotes(ctx context.Context, sessionID uint, notes string) (*domain.Session, error)
	// Delete removes a session and its owned children.
	Delete(ctx context.Context, sessionID uint) error
}

// AssessmentService defines prediction, review, and prescription operations.
type AssessmentService interface {
	// RecordPrediction stores the triage outcome, one per session.
	RecordPrediction(ctx context.Context, sessionID uint, condition, riskLevel string, confidence float64, modelVersion *string) (*domain.Prediction, error)
	// SessionPrediction returns the prediction recorded for a session.
	SessionPrediction(ctx context.Context, sessionID uint) (*domain.Prediction, error)
	// Review fills the single review slot of a prediction.
	Review(ctx context.Context, predictionID, reviewerID uint, notes *string) (*domain.Prediction, error)
	// Prescribe issues a prescription against a session.
	Prescribe(ctx context.Context, sessionID, workerID uint, medication, dosage, instructions string, duration, notes *string) (*domain.Prescription, error)
	// SessionPrescriptions lists prescriptions issued against a session.
	SessionPrescriptions(ctx context.Context, sessionID uint) ([]domain.Prescription, error)
	// MarkDispensed records medication hand-over; idempotent.
	MarkDispensed(ctx context.Context, prescriptionID uint) error
}

// WorkflowService defines lifecycle transitions and derived read models.
type WorkflowService interface {
	// Close idempotently completes a session.
	Close(ctx context.Context, sessionID uint) (*domain.Session, error)
	// PatientHistory returns a patient's consultations, newest first.
	PatientHistory(ctx context.Context, patientID uint) ([]repo.HistoryEntry, error)
	// ReviewQueue returns sessions awaiting review, oldest first.
	ReviewQueue(ctx context.Context) ([]repo.ReviewQueueEntry, error)
	// SessionOverview returns the denormalized display join of all sessions.
	SessionOverview(ctx context.Context) ([]repo.OverviewRow, error)
	// WorkerActivity returns per-worker review and prescription totals.
	WorkerActivity(ctx context.Context) ([]repo.ActivityRow, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the triage API. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic; the DB handle and TTL exist only for the idempotency
// store consulted on message appends.
type Handlers struct {
	registry    RegistryService
	sessions    SessionService
	assessments AssessmentService
	workflow    WorkflowService

	db      *gorm.DB
	idemTTL time.Duration
}

// New constructs a Handlers instance bound to the given services. idemTTL
// bounds how long a stored Idempotency-Key remains replayable.
func New(db *gorm.DB, reg RegistryService, sess SessionService, asmt AssessmentService, wf WorkflowService, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{
		registry:    reg,
		sessions:    sess,
		assessments: asmt,
		workflow:    wf,
		db:          db,
		idemTTL:     idemTTL,
	}
}

// pathID parses the named path parameter as a positive numeric identifier.
// On failure it writes a 400 response and returns false.
func pathID(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return uint(n), true
}

//
// DTOs
//

// RegisterPatientRequest is the JSON payload for registering a patient.
type RegisterPatientRequest struct {
	FullName          string  `json:"full_name" binding:"required" example:"Aline Uwase"`
	PhoneNumber       string  `json:"phone_number" binding:"required" example:"+250788123456"`
	PreferredLanguage string  `json:"preferred_language" example:"kinyarwanda"`
	Location          *string `json:"location,omitempty" example:"Kigali, Gasabo"`
}

// UpdatePatientRequest is the JSON payload for a partial profile edit.
// Absent fields are left unchanged.
type UpdatePatientRequest struct {
	FullName          *string `json:"full_name,omitempty" example:"Aline Uwase"`
	PhoneNumber       *string `json:"phone_number,omitempty" example:"+250788123456"`
	PreferredLanguage *string `json:"preferred_language,omitempty" example:"english"`
	Location          *string `json:"location,omitempty" example:"Kigali, Gasabo"`
}

// RegisterWorkerRequest is the JSON payload for onboarding a worker.
type RegisterWorkerRequest struct {
	FullName       string  `json:"full_name" binding:"required" example:"Dr. Jean Mugisha"`
	Role           string  `json:"role" binding:"required" example:"doctor"`
	Specialization *string `json:"specialization,omitempty" example:"general medicine"`
	Facility       *string `json:"facility,omitempty" example:"Kacyiru District Hospital"`
	ContactInfo    *string `json:"contact_info,omitempty"`
}

//
// Patient handlers
//

// RegisterPatient creates a patient, or returns the existing record when
// the (phone, name) identity is already registered. Both outcomes are 200:
// registration is a lookup-or-create, not a strict insert.
func (h *Handlers) RegisterPatient(c *gin.Context) {
	var req RegisterPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.registry.RegisterPatient(c.Request.Context(), req.FullName, req.PhoneNumber, req.PreferredLanguage, req.Location)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// LookupPatient finds a patient by the phone + full_name query parameters.
func (h *Handlers) LookupPatient(c *gin.Context) {
	phone := c.Query("phone")
	name := c.Query("full_name")
	if phone == "" || name == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone and full_name query parameters required")
		return
	}

	p, err := h.registry.FindPatient(c.Request.Context(), phone, name)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// GetPatient fetches a patient by id.
func (h *Handlers) GetPatient(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	p, err := h.registry.GetPatient(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdatePatient applies a partial profile edit to a patient. An edit that
// would collide with another patient's (phone, name) identity fails with
// 409 conflict.
func (h *Handlers) UpdatePatient(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}

	var req UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.registry.UpdatePatient(c.Request.Context(), id, req.FullName, req.PhoneNumber, req.PreferredLanguage, req.Location)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// ListPatientsByPhone returns every patient registered under the phone
// query parameter, most recently created first. Shared household phones
// make this a list rather than a single record.
func (h *Handlers) ListPatientsByPhone(c *gin.Context) {
	phone := c.Query("phone")
	if phone == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone query parameter required")
		return
	}

	ps, err := h.registry.PatientsByPhone(c.Request.Context(), phone)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"patients": ps})
}

// DeletePatient removes a patient. Patients with consultation history are
// protected and the request fails with 409 invalid_state.
func (h *Handlers) DeletePatient(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.registry.DeletePatient(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

//
// Worker handlers
//

// RegisterWorker onboards a healthcare worker.
func (h *Handlers) RegisterWorker(c *gin.Context) {
	var req RegisterWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	w, err := h.registry.RegisterWorker(c.Request.Context(), req.FullName, req.Role, req.Specialization, req.Facility, req.ContactInfo)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, w)
}

// ListWorkers returns all active workers ordered by name.
func (h *Handlers) ListWorkers(c *gin.Context) {
	ws, err := h.registry.ListActiveWorkers(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"workers": ws})
}

// GetWorker fetches a worker by id, active or not.
func (h *Handlers) GetWorker(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	w, err := h.registry.GetWorker(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, w)
}

// DeactivateWorker soft-deletes a worker. Deactivating an already inactive
// worker succeeds (idempotent).
func (h *Handlers) DeactivateWorker(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.registry.DeactivateWorker(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
