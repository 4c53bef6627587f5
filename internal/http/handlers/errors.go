// Package handlers defines HTTP-layer error codes used across all API
// endpoints.
//
// The codes are the machine-readable half of every error response (see the
// fail() helper in this package). Clients branch on the code; the message
// is for humans.
//
// Conventions:
//   - Codes are lowercase snake_case.
//   - Generic codes (bad_request, not_found, conflict) mirror HTTP status
//     semantics.
//   - invalid_state marks operations that are well-formed but illegal in
//     the current lifecycle state (appending to a completed session,
//     re-reviewing a reviewed prediction, deleting a referenced record).
//     It shares the 409 status with conflict but is distinguishable.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeInvalidState = "invalid_state"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"
)
