// Package services – SessionService
//
// This file implements the consultation session store: opening sessions,
// appending conversation turns, recording symptoms, and reading the
// dialogue back in order.
//
// Sequence numbers are assigned here, not by callers. Each session has a
// single-writer lock in an in-process registry, so the read-max+insert pair
// is serialized per session; the unique (session, sequence) index plus a
// retry-with-recompute loop covers writers outside this process. Either
// mechanism alone satisfies the gap-free ordering guarantee; together they
// keep it cheap in the common case and safe in the worst one.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// session identifiers.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ihirwe/go-triage-backend/internal/domain"
	"github.com/ihirwe/go-triage-backend/internal/repo"
)

// appendRetries bounds the recompute-on-conflict loop for concurrent
// appenders that bypass the in-process lock (e.g. a second replica).
const appendRetries = 3

// sessionLock is one per-session serialization point with its last-use
// time, so idle entries can be evicted.
type sessionLock struct {
	mu       sync.Mutex
	lastSeen time.Time
}

// SessionService coordinates the conversation store for consultations.
type SessionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// locks holds the per-session writer locks, keyed by session id.
	mu    sync.Mutex
	locks map[uint]*sessionLock

	// lockTTL is how long an idle session lock survives before eviction.
	lockTTL time.Duration
	// lastSweep tracks the previous opportunistic cleanup.
	lastSweep time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{
		DB:        db,
		locks:     make(map[uint]*sessionLock),
		lockTTL:   30 * time.Minute,
		lastSweep: time.Now(),
	}
}

// Open creates a session for an existing patient with status=active.
func (s *SessionService) Open(ctx context.Context, patientID uint) (*domain.Session, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Open",
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
	return repo.CreateSession(ctx, s.DB, patientID)
}

// Get fetches a session by id.
func (s *SessionService) Get(ctx context.Context, id uint) (*domain.Session, error) {
	sess, err := repo.GetSession(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// Append validates a conversation turn and persists it with the next
// sequence number for the session. Completed sessions reject appends.
//
// The sequence numbers produced for one session form a gap-free series
// starting at 1 under any interleaving of concurrent callers.
func (s *SessionService) Append(ctx context.Context, sessionID uint, sender, text string, metadata *string) (*domain.ConversationMessage, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(
			attribute.Int64("session.id", int64(sessionID)),
			attribute.String("sender", sender),
		),
	)
	defer span.End()

	switch sender {
	case domain.SenderPatient, domain.SenderML:
	default:
		return nil, invalidField("sender", "must be patient or ml_system")
	}
	if text == "" {
		return nil, invalidField("message_text", "must not be empty")
	}

	lock := s.lockFor(sessionID)
	lock.mu.Lock()
	defer lock.mu.Unlock()

	var msg *domain.ConversationMessage
	for attempt := 0; attempt < appendRetries; attempt++ {
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			sess, err := repo.GetSession(ctx, tx, sessionID)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return ErrSessionNotFound
				}
				return err
			}
			if sess.IsCompleted() {
				return ErrSessionCompleted
			}

			last, err := repo.MaxSequence(ctx, tx, sessionID)
			if err != nil {
				return err
			}
			m, err := repo.CreateMessage(ctx, tx, sessionID, sender, text, last+1, metadata)
			if err != nil {
				return err
			}
			msg = m
			return nil
		})
		if errors.Is(err, repo.ErrDuplicate) {
			// Lost the sequence to a concurrent writer; recompute.
			continue
		}
		return msg, err
	}
	return nil, repo.ErrDuplicate
}

// RecordSymptom validates and stores a symptom observation for an existing
// session. Completed sessions are terminal and reject new symptoms, the
// same as message appends; the check and insert share one transaction so a
// concurrent close cannot slip a symptom into a closed record. Symptoms
// carry no ordering constraint among themselves.
func (s *SessionService) RecordSymptom(ctx context.Context, sessionID uint, name string, severity, duration, notes *string) (*domain.Symptom, error) {
	if name == "" {
		return nil, invalidField("symptom_name", "must not be empty")
	}
	if severity != nil {
		switch *severity {
		case domain.SeverityMild, domain.SeverityModerate, domain.SeveritySevere:
		default:
			return nil, invalidField("severity", "must be mild, moderate, or severe")
		}
	}

	var sym *domain.Symptom
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := repo.GetSession(ctx, tx, sessionID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if sess.IsCompleted() {
			return ErrSessionCompleted
		}

		sym, err = repo.CreateSymptom(ctx, tx, sessionID, name, severity, duration, notes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sym, nil
}

// Messages returns the full dialogue of a session in sequence order.
func (s *SessionService) Messages(ctx context.Context, sessionID uint) ([]domain.ConversationMessage, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return repo.ListMessages(ctx, s.DB, sessionID)
}

// MessagesPage returns a page of the dialogue and the total count. It
// applies defaults for invalid page/pageSize.
func (s *SessionService) MessagesPage(ctx context.Context, sessionID uint, page, pageSize int) ([]domain.ConversationMessage, int64, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "MessagesPage",
		trace.WithAttributes(
			attribute.Int64("session.id", int64(sessionID)),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, 0, err
	}

	total, err := repo.CountMessages(ctx, s.DB, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ConversationMessage{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, sessionID, offset, pageSize)
	return items, total, err
}

// Symptoms returns the symptoms recorded for a session.
func (s *SessionService) Symptoms(ctx context.Context, sessionID uint) ([]domain.Symptom, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return repo.ListSymptoms(ctx, s.DB, sessionID)
}

// SessionsForPatient returns every consultation ever opened for a patient,
// newest start first. Unknown patients are reported, not given an empty
// list, so callers can distinguish "no history" from "no such patient".
func (s *SessionService) SessionsForPatient(ctx context.Context, patientID uint) ([]domain.Session, error) {
	ok, err := repo.PatientExists(ctx, s.DB, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPatientNotFound
	}
	return repo.ListSessionsByPatient(ctx, s.DB, patientID)
}

// UpdateNotes replaces the free-text clinical notes on a session. Notes
// sit outside the terminal-state protections: a completed session still
// takes note edits, only its status, dialogue, and symptoms are frozen.
func (s *SessionService) UpdateNotes(ctx context.Context, sessionID uint, notes string) (*domain.Session, error) {
	err := repo.UpdateSessionNotes(ctx, s.DB, sessionID, notes)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, sessionID)
}

// Delete removes a session together with its owned children (messages,
// symptoms, prediction) through the CASCADE foreign keys. Sessions with
// prescriptions are protected and the delete is rejected.
func (s *SessionService) Delete(ctx context.Context, sessionID uint) error {
	err := repo.DeleteSession(ctx, s.DB, sessionID)
	switch {
	case errors.Is(err, repo.ErrRestricted):
		return ErrSessionInUse
	case errors.Is(err, repo.ErrNotFound):
		return ErrSessionNotFound
	}
	return err
}

// lockFor returns the per-session lock, creating it on first use and
// opportunistically evicting idle entries to bound memory.
func (s *SessionService) lockFor(sessionID uint) *sessionLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.lastSweep) > s.lockTTL {
		for id, l := range s.locks {
			if now.Sub(l.lastSeen) > s.lockTTL {
				delete(s.locks, id)
			}
		}
		s.lastSweep = now
	}

	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.lastSeen = now
	return l
}
