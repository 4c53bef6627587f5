package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ihirwe/go-triage-backend/internal/domain"
)

func TestClose_IdempotentFinalState(t *testing.T) {
	db := newServiceDB(t)
	svc := NewWorkflowService(db)
	ctx := context.Background()
	p := mustPatient(t, db)
	s := mustSession(t, db, p.ID)

	first, err := svc.Close(ctx, s.ID)
	if err != nil {
		t.Fatalf("first close: %v", err)
	}
	if first.Status != domain.SessionCompleted || first.EndedAt == nil {
		t.Fatalf("unexpected state after close: %+v", first)
	}

	second, err := svc.Close(ctx, s.ID)
	if err != nil {
		t.Fatalf("second close must succeed: %v", err)
	}
	if !second.EndedAt.Equal(*first.EndedAt) {
		t.Fatalf("end time changed on re-close: %v vs %v", first.EndedAt, second.EndedAt)
	}

	if _, err := svc.Close(ctx, 404); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestPatientHistory_UnknownPatient(t *testing.T) {
	db := newServiceDB(t)
	svc := NewWorkflowService(db)

	if _, err := svc.PatientHistory(context.Background(), 404); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

// TestConsultationLifecycle drives one consultation end to end: register,
// converse, record symptoms, predict, review from the queue, prescribe,
// dispense, close, and read the history back.
func TestConsultationLifecycle(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	registry := NewRegistryService(db)
	sessions := NewSessionService(db)
	assessments := NewAssessmentService(db)
	workflow := NewWorkflowService(db)

	patient, err := registry.RegisterPatient(ctx, "Aline Uwase", "+250788000001", "", sptr("Kigali"))
	if err != nil {
		t.Fatalf("register patient: %v", err)
	}
	worker, err := registry.RegisterWorker(ctx, "Jean Mugisha", domain.RoleDoctor, sptr("general medicine"), nil, nil)
	if err != nil {
		t.Fatalf("register worker: %v", err)
	}

	sess, err := sessions.Open(ctx, patient.ID)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	for i, turn := range []struct{ sender, text string }{
		{domain.SenderPatient, "Mfite umuriro"},
		{domain.SenderML, "Umaze iminsi ingahe?"},
		{domain.SenderPatient, "Iminsi itatu"},
	} {
		m, err := sessions.Append(ctx, sess.ID, turn.sender, turn.text, nil)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if m.SequenceNumber != i+1 {
			t.Fatalf("append %d got sequence %d", i, m.SequenceNumber)
		}
	}
	if _, err := sessions.RecordSymptom(ctx, sess.ID, "fever", sptr(domain.SeverityModerate), sptr("3 days"), nil); err != nil {
		t.Fatalf("record symptom: %v", err)
	}

	pred, err := assessments.RecordPrediction(ctx, sess.ID, "malaria", domain.RiskHigh, 0.87, sptr("triage-v2.3"))
	if err != nil {
		t.Fatalf("record prediction: %v", err)
	}

	// The session must now be visible in the review queue.
	queue, err := workflow.ReviewQueue(ctx)
	if err != nil {
		t.Fatalf("review queue: %v", err)
	}
	if len(queue) != 1 || queue[0].SessionID != sess.ID {
		t.Fatalf("session missing from queue: %+v", queue)
	}
	if queue[0].MessageCount != 3 || queue[0].SymptomCount != 1 {
		t.Fatalf("queue counts wrong: %+v", queue[0])
	}

	if _, err := assessments.Review(ctx, pred.ID, worker.ID, sptr("agree, start treatment")); err != nil {
		t.Fatalf("review: %v", err)
	}
	rx, err := assessments.Prescribe(ctx, sess.ID, worker.ID, "Coartem", "80/480mg twice daily", "take with food", sptr("3 days"), nil)
	if err != nil {
		t.Fatalf("prescribe: %v", err)
	}
	if err := assessments.MarkDispensed(ctx, rx.ID); err != nil {
		t.Fatalf("dispense: %v", err)
	}

	closed, err := workflow.Close(ctx, sess.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != domain.SessionCompleted {
		t.Fatalf("expected completed, got %s", closed.Status)
	}

	// Closed sessions leave the queue.
	queue, err = workflow.ReviewQueue(ctx)
	if err != nil {
		t.Fatalf("review queue after close: %v", err)
	}
	if len(queue) != 0 {
		t.Fatalf("queue should be empty: %+v", queue)
	}

	hist, err := workflow.PatientHistory(ctx, patient.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(hist))
	}
	entry := hist[0]
	if entry.SessionID != sess.ID || entry.Status != string(domain.SessionCompleted) {
		t.Fatalf("history entry wrong: %+v", entry)
	}
	if entry.PredictedCondition == nil || *entry.PredictedCondition != "malaria" || !entry.WasPrescribed {
		t.Fatalf("history missing outcome: %+v", entry)
	}

	activity, err := workflow.WorkerActivity(ctx)
	if err != nil {
		t.Fatalf("worker activity: %v", err)
	}
	if len(activity) != 1 || activity[0].PrescriptionsIssued != 1 || activity[0].PredictionsReviewed != 1 {
		t.Fatalf("activity totals wrong: %+v", activity)
	}

	overview, err := workflow.SessionOverview(ctx)
	if err != nil {
		t.Fatalf("session overview: %v", err)
	}
	if len(overview) != 1 || overview[0].MedicationName == nil || *overview[0].MedicationName != "Coartem" {
		t.Fatalf("overview row wrong: %+v", overview)
	}
}
