// Package services defines the business logic for the triage store:
// identity registry, consultation sessions, assessments, and workflow
// operations. This file centralizes the service-level error taxonomy so
// that it can be consistently returned by service methods and checked by
// callers.
//
// Four kinds of failure exist, and none is retriable by the store itself:
//
//   - validation: a malformed or out-of-range field (caller bug);
//   - not found: a referenced patient/worker/session/prediction is absent;
//   - conflict: a uniqueness invariant was violated;
//   - invalid state: the operation is not legal in the current lifecycle
//     state (appending to a completed session, re-reviewing a reviewed
//     prediction, deleting a referenced row).
//
// Translation into HTTP statuses is performed at the handler layer.
package services

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or out-of-range input field. The
// field name lets callers surface the offending parameter.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// invalidField builds a *ValidationError.
func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Not-found errors.
var (
	// ErrPatientNotFound indicates that the referenced patient does not exist.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrWorkerNotFound indicates that the referenced healthcare worker
	// does not exist.
	ErrWorkerNotFound = errors.New("healthcare worker not found")

	// ErrSessionNotFound indicates that the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrPredictionNotFound indicates that the referenced prediction does
	// not exist, or that a session has no prediction yet.
	ErrPredictionNotFound = errors.New("prediction not found")

	// ErrPrescriptionNotFound indicates that the referenced prescription
	// does not exist.
	ErrPrescriptionNotFound = errors.New("prescription not found")
)

// Conflict and invalid-state errors.
var (
	// ErrDuplicatePrediction is returned when a prediction already exists
	// for the session. The first prediction stays untouched; callers must
	// re-fetch rather than retry.
	ErrDuplicatePrediction = errors.New("prediction already recorded for session")

	// ErrDuplicatePatient is returned when a profile edit would give a
	// patient the (phone, name) identity of another existing patient.
	ErrDuplicatePatient = errors.New("phone and name already registered to another patient")

	// ErrSessionCompleted is returned when an operation is attempted on a
	// session that reached its terminal state.
	ErrSessionCompleted = errors.New("session is completed")

	// ErrPredictionReviewed is returned on a second review attempt. Review
	// is a one-time act; amending a review is not supported.
	ErrPredictionReviewed = errors.New("prediction already reviewed")

	// ErrWorkerInactive is returned when a deactivated worker attempts a
	// review or prescription.
	ErrWorkerInactive = errors.New("healthcare worker is deactivated")

	// ErrPatientInUse is returned when deleting a patient that sessions
	// still reference.
	ErrPatientInUse = errors.New("patient is referenced by sessions")

	// ErrSessionInUse is returned when deleting a session that
	// prescriptions still reference.
	ErrSessionInUse = errors.New("session is referenced by prescriptions")
)
