// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all
// endpoints: the structured error envelope, the fail()/ok()/noContent()
// helpers, and the translation of service-layer errors into HTTP statuses.
// Every failure returns an ErrorResponse with a stable `code`; 5xx
// responses are additionally logged with request context.
//
// Example error response:
//
//	HTTP/1.1 409 Conflict
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "invalid_state",
//	  "message": "session is completed"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ihirwe/go-triage-backend/internal/http/middleware"
	"github.com/ihirwe/go-triage-backend/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// fail aborts the request with a structured error and logs server-side
// errors with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(), for use by router setup (NoRoute,
// NoMethod fallbacks).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failService maps a service-layer error to its HTTP response:
//
//   - *services.ValidationError            → 400 bad_request
//   - not-found sentinels                  → 404 not_found
//   - duplicate-identity sentinels         → 409 conflict
//   - lifecycle/reference-state sentinels  → 409 invalid_state
//   - anything else                        → 500 internal_error
func failService(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, ve.Error())
	case errors.Is(err, services.ErrPatientNotFound),
		errors.Is(err, services.ErrWorkerNotFound),
		errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrPredictionNotFound),
		errors.Is(err, services.ErrPrescriptionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrDuplicatePrediction),
		errors.Is(err, services.ErrDuplicatePatient):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrSessionCompleted),
		errors.Is(err, services.ErrPredictionReviewed),
		errors.Is(err, services.ErrWorkerInactive),
		errors.Is(err, services.ErrPatientInUse),
		errors.Is(err, services.ErrSessionInUse):
		fail(c, http.StatusConflict, ErrCodeInvalidState, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// ok writes a success JSON response with the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
