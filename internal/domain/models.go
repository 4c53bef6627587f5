// Package domain defines the persistence models for the triage store:
// patients, healthcare workers, consultation sessions, conversation
// messages, symptoms, predictions, and prescriptions. These types are
// mapped with GORM and form the core data layer of the application.
package domain

import "time"

// SessionStatus is the lifecycle state of a consultation session.
type SessionStatus string

const (
	// SessionActive is the initial state: the conversation is ongoing.
	SessionActive SessionStatus = "active"
	// SessionAwaitingReview means triage produced a prediction that has
	// not yet been validated by a healthcare worker.
	SessionAwaitingReview SessionStatus = "awaiting_review"
	// SessionCompleted is terminal.
	SessionCompleted SessionStatus = "completed"
)

// Message senders.
const (
	SenderPatient = "patient"
	SenderML      = "ml_system"
)

// Worker roles.
const (
	RoleDoctor    = "doctor"
	RoleNurse     = "nurse"
	RoleClinician = "clinician"
)

// Symptom severities.
const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// Prediction risk levels.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Preferred languages.
const (
	LangKinyarwanda = "kinyarwanda"
	LangEnglish     = "english"
)

// Patient identifies a person who consults the triage system. Identity is
// the (phone_number, full_name) pair: a shared household phone may appear
// under several names, but the same name+phone is one patient.
//
// Patients are never hard-deleted while sessions reference them; the
// session foreign key is declared RESTRICT to protect the medical record.
type Patient struct {
	ID                uint      `json:"id"                 gorm:"primaryKey"`
	FullName          string    `json:"full_name"          gorm:"type:varchar(255);not null;uniqueIndex:ux_patient_identity,priority:2"`
	PhoneNumber       string    `json:"phone_number"       gorm:"type:varchar(32);not null;uniqueIndex:ux_patient_identity,priority:1"`
	PreferredLanguage string    `json:"preferred_language" gorm:"type:varchar(16);not null;default:'kinyarwanda';check:preferred_language IN ('kinyarwanda','english')"`
	Location          *string   `json:"location,omitempty" gorm:"type:varchar(255)"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the database table name for Patient.
func (Patient) TableName() string { return "patients" }

// HealthcareWorker is a doctor, nurse, or clinician who reviews predictions
// and issues prescriptions. Workers are deactivated, never deleted, so that
// past prescriptions and reviews keep a valid author.
type HealthcareWorker struct {
	ID             uint      `json:"id"                       gorm:"primaryKey"`
	FullName       string    `json:"full_name"                gorm:"type:varchar(255);not null"`
	Role           string    `json:"role"                     gorm:"type:varchar(16);not null;check:role IN ('doctor','nurse','clinician')"`
	Specialization *string   `json:"specialization,omitempty" gorm:"type:varchar(255)"`
	Facility       *string   `json:"facility,omitempty"       gorm:"type:varchar(255)"`
	ContactInfo    *string   `json:"contact_info,omitempty"   gorm:"type:varchar(255)"`
	IsActive       bool      `json:"is_active"                gorm:"not null;default:true;index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for HealthcareWorker.
func (HealthcareWorker) TableName() string { return "healthcare_workers" }

// Session is the aggregate root of one consultation, from open to close.
// It exclusively owns its messages, symptoms, and (at most one) prediction,
// which cascade-delete with it. Prescriptions reference a session but are
// not owned by it.
//
// PredictionLabel and PredictionConfidence are a denormalized cache of the
// authoritative prediction row, written only when the prediction is
// recorded.
type Session struct {
	ID                   uint          `json:"id"                              gorm:"primaryKey"`
	PatientID            uint          `json:"patient_id"                      gorm:"not null;index"`
	StartedAt            time.Time     `json:"started_at"                      gorm:"not null;index"`
	EndedAt              *time.Time    `json:"ended_at,omitempty"`
	Status               SessionStatus `json:"status"                          gorm:"type:varchar(20);not null;default:'active';check:status IN ('active','awaiting_review','completed');index"`
	PredictionLabel      *string       `json:"prediction_label,omitempty"      gorm:"type:varchar(255)"`
	PredictionConfidence *float64      `json:"prediction_confidence,omitempty"`
	Notes                *string       `json:"notes,omitempty"                 gorm:"type:text"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`

	// Patient is referenced, not owned: deleting a patient with sessions
	// is rejected.
	Patient Patient `json:"-" gorm:"foreignKey:PatientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// IsCompleted reports whether the session reached its terminal state.
func (s *Session) IsCompleted() bool { return s.Status == SessionCompleted }

// ConversationMessage is a single turn of the dialogue within a session.
// SequenceNumber imposes a strict total order per session, independent of
// wall-clock timestamps which may collide under concurrent senders.
type ConversationMessage struct {
	ID             uint      `json:"id"                 gorm:"primaryKey"`
	SessionID      uint      `json:"session_id"         gorm:"not null;index;uniqueIndex:ux_session_sequence,priority:1"`
	Sender         string    `json:"sender"             gorm:"type:varchar(16);not null;check:sender IN ('patient','ml_system')"`
	MessageText    string    `json:"message_text"       gorm:"type:text;not null;check:message_text <> ''"`
	SequenceNumber int       `json:"sequence_number"    gorm:"not null;uniqueIndex:ux_session_sequence,priority:2;check:sequence_number > 0"`
	Metadata       *string   `json:"metadata,omitempty" gorm:"type:text"` // JSON blob from the dialogue engine
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Session is the owning consultation. Messages are cascade-deleted
	// with it.
	Session Session `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ConversationMessage.
func (ConversationMessage) TableName() string { return "conversation_messages" }

// Symptom is a structured observation extracted from the conversation.
// Severity may legitimately be null when it was not assessed.
type Symptom struct {
	ID          uint      `json:"id"                 gorm:"primaryKey"`
	SessionID   uint      `json:"session_id"         gorm:"not null;index"`
	SymptomName string    `json:"symptom_name"       gorm:"type:varchar(255);not null;check:symptom_name <> ''"`
	Severity    *string   `json:"severity,omitempty" gorm:"type:varchar(16);check:severity IS NULL OR severity IN ('mild','moderate','severe')"`
	Duration    *string   `json:"duration,omitempty" gorm:"type:varchar(100)"`
	Notes       *string   `json:"notes,omitempty"    gorm:"type:text"`
	RecordedAt  time.Time `json:"recorded_at"        gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Session Session `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Symptom.
func (Symptom) TableName() string { return "symptoms" }

// Prediction is the triage outcome for a session, at most one per session
// (unique session_id). Only the review fields mutate after creation, and
// only once: a prediction has a single review slot.
type Prediction struct {
	ID                 uint       `json:"id"                      gorm:"primaryKey"`
	SessionID          uint       `json:"session_id"              gorm:"not null;uniqueIndex:ux_prediction_session"`
	PredictedCondition string     `json:"predicted_condition"     gorm:"type:varchar(255);not null;check:predicted_condition <> ''"`
	RiskLevel          string     `json:"risk_level"              gorm:"type:varchar(16);not null;check:risk_level IN ('low','medium','high')"`
	ConfidenceScore    float64    `json:"confidence_score"        gorm:"not null;check:confidence_score >= 0 AND confidence_score <= 1"`
	ModelVersion       *string    `json:"model_version,omitempty" gorm:"type:varchar(64)"`
	GeneratedAt        time.Time  `json:"generated_at"            gorm:"not null"`
	ReviewedBy         *uint      `json:"reviewed_by,omitempty"   gorm:"index"`
	ReviewedAt         *time.Time `json:"reviewed_at,omitempty"`
	ReviewNotes        *string    `json:"review_notes,omitempty"  gorm:"type:text"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Session Session `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	// Reviewer keeps the review attribution; if the worker row is ever
	// removed the reference is nulled, not cascaded.
	Reviewer *HealthcareWorker `json:"-" gorm:"foreignKey:ReviewedBy;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for Prediction.
func (Prediction) TableName() string { return "predictions" }

// IsReviewed reports whether a worker already validated this prediction.
func (p *Prediction) IsReviewed() bool { return p.ReviewedAt != nil }

// Prescription records medication issued against a session by a worker.
// Both references are RESTRICT: neither the session nor the worker may be
// deleted while a prescription points at them.
type Prescription struct {
	ID             uint       `json:"id"                 gorm:"primaryKey"`
	SessionID      uint       `json:"session_id"         gorm:"not null;index"`
	WorkerID       uint       `json:"worker_id"          gorm:"not null;index"`
	MedicationName string     `json:"medication_name"    gorm:"type:varchar(255);not null;check:medication_name <> ''"`
	Dosage         string     `json:"dosage"             gorm:"type:varchar(100);not null;check:dosage <> ''"`
	Instructions   string     `json:"instructions"       gorm:"type:text;not null;check:instructions <> ''"`
	Duration       *string    `json:"duration,omitempty" gorm:"type:varchar(100)"`
	PrescribedAt   time.Time  `json:"prescribed_at"      gorm:"not null;index"`
	Dispensed      bool       `json:"dispensed"          gorm:"not null;default:false"`
	DispensedAt    *time.Time `json:"dispensed_at,omitempty"`
	Notes          *string    `json:"notes,omitempty"    gorm:"type:text"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Session Session          `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Worker  HealthcareWorker `json:"-" gorm:"foreignKey:WorkerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Prescription.
func (Prescription) TableName() string { return "prescriptions" }
