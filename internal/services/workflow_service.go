// Package services – WorkflowService
//
// This file implements the transactional workflow operations layered on
// top of the stores (closing a session, reading a patient's history) and
// exposes the derived read models. Close is the sole legitimate path to
// the terminal session state and is safe to call twice or concurrently: a
// worker and an automated timeout may both invoke it.
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

// WorkflowService provides session lifecycle transitions and aggregate
// views across the stores.
type WorkflowService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewWorkflowService constructs a WorkflowService.
func NewWorkflowService(db *gorm.DB) *WorkflowService {
	return &WorkflowService{DB: db}
}

// Close idempotently completes a session: status=completed, ended_at=now.
// Calling it on an already completed session is a no-op that preserves the
// original end time. The returned session reflects the final state.
func (s *WorkflowService) Close(ctx context.Context, sessionID uint) (*domain.Session, error) {
	tr := otel.Tracer("services/WorkflowService")
	ctx, span := tr.Start(ctx, "Close",
		trace.WithAttributes(attribute.Int64("session.id", int64(sessionID))),
	)
	defer span.End()

	_, err := repo.CloseSession(ctx, s.DB, sessionID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return repo.GetSession(ctx, s.DB, sessionID)
}

// PatientHistory returns the consultation history of a patient, newest
// start first, including sessions that were never predicted or prescribed.
func (s *WorkflowService) PatientHistory(ctx context.Context, patientID uint) ([]repo.HistoryEntry, error) {
	tr := otel.Tracer("services/WorkflowService")
	ctx, span := tr.Start(ctx, "PatientHistory",
		trace.WithAttributes(attribute.Int64("patient.id", int64(patientID))),
	)
	defer span.End()

	ok, err := repo.PatientExists(ctx, s.DB, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPatientNotFound
	}
	return repo.PatientHistory(ctx, s.DB, patientID)
}

// ReviewQueue returns the FIFO queue of sessions waiting for human review.
func (s *WorkflowService) ReviewQueue(ctx context.Context) ([]repo.ReviewQueueEntry, error) {
	return repo.ReviewQueue(ctx, s.DB)
}

// SessionOverview returns the denormalized display join of all sessions.
func (s *WorkflowService) SessionOverview(ctx context.Context) ([]repo.OverviewRow, error) {
	return repo.SessionOverview(ctx, s.DB)
}

// WorkerActivity returns per-worker totals for active workers.
func (s *WorkflowService) WorkerActivity(ctx context.Context) ([]repo.ActivityRow, error) {
	return repo.WorkerActivity(ctx, s.DB)
}
