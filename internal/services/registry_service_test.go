package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ihirwe/go-triage-backend/internal/domain"
)

func TestRegisterPatient_NormalizesIdentity(t *testing.T) {
	db := newServiceDB(t)
	svc := NewRegistryService(db)

	p, err := svc.RegisterPatient(context.Background(), "  aline   uwase ", "+250788000001", "", nil)
	if err != nil {
		t.Fatalf("RegisterPatient: %v", err)
	}
	if p.FullName != "Aline Uwase" {
		t.Fatalf("name not normalized: %q", p.FullName)
	}
	if p.PreferredLanguage != domain.LangKinyarwanda {
		t.Fatalf("language should default to kinyarwanda: %q", p.PreferredLanguage)
	}
}

func TestRegisterPatient_IdempotentOnIdentity(t *testing.T) {
	db := newServiceDB(t)
	svc := NewRegistryService(db)
	ctx := context.Background()

	first, err := svc.RegisterPatient(ctx, "Aline Uwase", "+250788000001", "", nil)
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	// Same identity with different casing and spacing converges on one row.
	second, err := svc.RegisterPatient(ctx, "ALINE  UWASE", "+250788000001", domain.LangEnglish, nil)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same patient, got %d and %d", first.ID, second.ID)
	}
}

func TestRegisterPatient_Validation(t *testing.T) {
	db := newServiceDB(t)
	svc := NewRegistryService(db)
	ctx := context.Background()

	if _, err := svc.RegisterPatient(ctx, "A", "+250788000001", "", nil); !isValidation(t, err, "full_name") {
		t.Fatalf("expected full_name validation, got %v", err)
	}
	if _, err := svc.RegisterPatient(ctx, "Aline Uwase", "not-a-phone!", "", nil); !isValidation(t, err, "phone_number") {
		t.Fatalf("expected phone_number validation, got %v", err)
	}
	if _, err := svc.RegisterPatient(ctx, "Aline Uwase", "+250788000001", "french", nil); !isValidation(t, err, "preferred_language") {
		t.Fatalf("expected preferred_language validation, got %v", err)
	}
}

func TestFindPatient_Unknown(t *testing.T) {
	db := newServiceDB(t)
	svc := NewRegistryService(db)

	if _, err := svc.FindPatient(context.Background(), "+250788999999", "Nobody Here"); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestDeletePatient_WithHistory(t *testing.T) {
	db := newServiceDB(t)
	svc := NewRegistryService(db)
	p := mustPatient(t, db)
	mustSession(t, db, p.ID)

	if err := svc.DeletePatient(context.Background(), p.ID); !errors.Is(err, ErrPatientInUse) {
		t.Fatalf("expected ErrPatientInUse, got %v", err)
	}
}

func TestRegisterWorker_RoleValidation(t *testing.T) {
	db := newServiceDB(t)
	svc := NewRegistryService(db)
	ctx := context.Background()

	if _, err := svc.RegisterWorker(ctx, "Jean Mugisha", "surgeon", nil, nil, nil); !isValidation(t, err, "role") {
		t.Fatalf("expected role validation, got %v", err)
	}

	w, err := svc.RegisterWorker(ctx, "jean mugisha", "Doctor", nil, nil, nil)
	if err != nil {
		t.Fatalf("RegisterWorker: %v", err)
	}
	if w.Role != domain.RoleDoctor || w.FullName != "Jean Mugisha" {
		t.Fatalf("normalization wrong: %+v", w)
	}
}

func TestDeactivateWorker_UnknownAndIdempotent(t *testing.T) {
	db := newServiceDB(t)
	svc := NewRegistryService(db)
	ctx := context.Background()

	if err := svc.DeactivateWorker(ctx, 404); !errors.Is(err, ErrWorkerNotFound) {
		t.Fatalf("expected ErrWorkerNotFound, got %v", err)
	}

	w := mustWorker(t, db)
	if err := svc.DeactivateWorker(ctx, w.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := svc.DeactivateWorker(ctx, w.ID); err != nil {
		t.Fatalf("second deactivate must succeed: %v", err)
	}

	ws, err := svc.ListActiveWorkers(ctx)
	if err != nil {
		t.Fatalf("ListActiveWorkers: %v", err)
	}
	if len(ws) != 0 {
		t.Fatalf("expected no active workers, got %d", len(ws))
	}
}

func TestUpdatePatient_PartialEdit(t *testing.T) {
	db := newServiceDB(t)
	svc := NewRegistryService(db)
	ctx := context.Background()

	p, err := svc.RegisterPatient(ctx, "Aline Uwase", "+250788000001", "", nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	updated, err := svc.UpdatePatient(ctx, p.ID, sptr("  aline   mukamana "), nil, sptr("ENGLISH"), sptr("Musanze"))
	if err != nil {
		t.Fatalf("UpdatePatient: %v", err)
	}
	if updated.FullName != "Aline Mukamana" {
		t.Fatalf("name not normalized: %q", updated.FullName)
	}
	if updated.PreferredLanguage != domain.LangEnglish {
		t.Fatalf("language not updated: %q", updated.PreferredLanguage)
	}
	if updated.Location == nil || *updated.Location != "Musanze" {
		t.Fatalf("location not updated: %+v", updated.Location)
	}
	// Untouched fields survive the edit.
	if updated.PhoneNumber != "+250788000001" {
		t.Fatalf("phone changed without being edited: %q", updated.PhoneNumber)
	}
}

func TestUpdatePatient_Validation(t *testing.T) {
	db := newServiceDB(t)
	svc := NewRegistryService(db)
	ctx := context.Background()
	p := mustPatient(t, db)

	if _, err := svc.UpdatePatient(ctx, p.ID, nil, nil, nil, nil); !isValidation(t, err, "body") {
		t.Fatalf("expected empty-edit validation, got %v", err)
	}
	if _, err := svc.UpdatePatient(ctx, p.ID, nil, sptr("not-a-phone!"), nil, nil); !isValidation(t, err, "phone_number") {
		t.Fatalf("expected phone_number validation, got %v", err)
	}
	if _, err := svc.UpdatePatient(ctx, p.ID, nil, nil, sptr("french"), nil); !isValidation(t, err, "preferred_language") {
		t.Fatalf("expected preferred_language validation, got %v", err)
	}
	if _, err := svc.UpdatePatient(ctx, 404, nil, nil, nil, sptr("Kigali")); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestUpdatePatient_IdentityCollision(t *testing.T) {
	db := newServiceDB(t)
	svc := NewRegistryService(db)
	ctx := context.Background()

	if _, err := svc.RegisterPatient(ctx, "Aline Uwase", "+250788000001", "", nil); err != nil {
		t.Fatalf("first register: %v", err)
	}
	other, err := svc.RegisterPatient(ctx, "Chantal Uwera", "+250788000002", "", nil)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}

	// Editing the second patient onto the first identity must be rejected.
	_, err = svc.UpdatePatient(ctx, other.ID, sptr("Aline Uwase"), sptr("+250788000001"), nil, nil)
	if !errors.Is(err, ErrDuplicatePatient) {
		t.Fatalf("expected ErrDuplicatePatient, got %v", err)
	}
}

func TestPatientsByPhone_SharedHousehold(t *testing.T) {
	db := newServiceDB(t)
	svc := NewRegistryService(db)
	ctx := context.Background()

	if _, err := svc.RegisterPatient(ctx, "Aline Uwase", "+250788000001", "", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.RegisterPatient(ctx, "Eric Uwase", "+250788000001", "", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.RegisterPatient(ctx, "Chantal Uwera", "+250788000002", "", nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	ps, err := svc.PatientsByPhone(ctx, " +250788000001 ")
	if err != nil {
		t.Fatalf("PatientsByPhone: %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("expected 2 patients on the shared phone, got %d", len(ps))
	}

	if _, err := svc.PatientsByPhone(ctx, "  "); !isValidation(t, err, "phone") {
		t.Fatalf("expected phone validation, got %v", err)
	}
}
