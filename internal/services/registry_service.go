// Package services – RegistryService
//
// This file implements the identity registry: patient and healthcare
// worker records. It validates and normalizes the fields described by the
// schema (names, phone numbers, languages, roles) and coordinates the
// repository operations. Patient registration is an idempotent
// get-or-create on the (phone, name) identity, matching the upsert the
// database layer has always performed, so concurrent registrations of the
// same person converge on one row instead of racing inserts.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ihirwe/go-triage-backend/internal/domain"
	"github.com/ihirwe/go-triage-backend/internal/repo"
)

// phoneRE accepts digits, "+", "-", parentheses, and spaces only.
var phoneRE = regexp.MustCompile(`^[0-9+\-() ]+$`)

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// nameCaser title-cases person names without locale-specific rules.
var nameCaser = cases.Title(language.Und)

// RegistryService manages patient and healthcare worker records.
type RegistryService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewRegistryService constructs a RegistryService.
func NewRegistryService(db *gorm.DB) *RegistryService {
	return &RegistryService{DB: db}
}

// RegisterPatient validates the fields and registers a patient, returning
// the existing record when the (phone, name) identity is already known.
// Language defaults to kinyarwanda when empty.
func (s *RegistryService) RegisterPatient(ctx context.Context, fullName, phone, preferredLanguage string, location *string) (*domain.Patient, error) {
	fullName = normalizeName(fullName)
	phone = strings.TrimSpace(phone)

	if err := validatePersonName(fullName); err != nil {
		return nil, err
	}
	if phone == "" || !phoneRE.MatchString(phone) {
		return nil, invalidField("phone_number", "must contain only digits, +, -, parentheses, and spaces")
	}

	lang := strings.ToLower(strings.TrimSpace(preferredLanguage))
	switch lang {
	case "":
		lang = domain.LangKinyarwanda
	case domain.LangKinyarwanda, domain.LangEnglish:
	default:
		return nil, invalidField("preferred_language", "must be kinyarwanda or english")
	}

	// Get-or-create: prefer the existing identity, fall back to insert,
	// and re-fetch when a concurrent insert wins the race.
	if p, err := repo.FindPatient(ctx, s.DB, phone, fullName); err == nil {
		return p, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	p, err := repo.CreatePatient(ctx, s.DB, fullName, phone, lang, location)
	if errors.Is(err, repo.ErrDuplicate) {
		return repo.FindPatient(ctx, s.DB, phone, fullName)
	}
	return p, err
}

// FindPatient looks up the patient identified by the (phone, name) pair.
func (s *RegistryService) FindPatient(ctx context.Context, phone, fullName string) (*domain.Patient, error) {
	p, err := repo.FindPatient(ctx, s.DB, strings.TrimSpace(phone), normalizeName(fullName))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPatientNotFound
	}
	return p, err
}

// GetPatient fetches a patient by id.
func (s *RegistryService) GetPatient(ctx context.Context, id uint) (*domain.Patient, error) {
	p, err := repo.GetPatient(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPatientNotFound
	}
	return p, err
}

// UpdatePatient applies partial profile edits to a patient. Nil fields are
// left untouched; provided fields pass the same validation and
// normalization as registration. An edit that would collide with another
// patient's (phone, name) identity is rejected with ErrDuplicatePatient.
func (s *RegistryService) UpdatePatient(ctx context.Context, id uint, fullName, phone, preferredLanguage, location *string) (*domain.Patient, error) {
	updates := map[string]any{}

	if fullName != nil {
		name := normalizeName(*fullName)
		if err := validatePersonName(name); err != nil {
			return nil, err
		}
		updates["full_name"] = name
	}
	if phone != nil {
		p := strings.TrimSpace(*phone)
		if p == "" || !phoneRE.MatchString(p) {
			return nil, invalidField("phone_number", "must contain only digits, +, -, parentheses, and spaces")
		}
		updates["phone_number"] = p
	}
	if preferredLanguage != nil {
		lang := strings.ToLower(strings.TrimSpace(*preferredLanguage))
		switch lang {
		case domain.LangKinyarwanda, domain.LangEnglish:
		default:
			return nil, invalidField("preferred_language", "must be kinyarwanda or english")
		}
		updates["preferred_language"] = lang
	}
	if location != nil {
		updates["location"] = *location
	}
	if len(updates) == 0 {
		return nil, invalidField("body", "no editable fields provided")
	}

	err := repo.UpdatePatient(ctx, s.DB, id, updates)
	switch {
	case errors.Is(err, repo.ErrDuplicate):
		return nil, ErrDuplicatePatient
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrPatientNotFound
	case err != nil:
		return nil, err
	}
	return s.GetPatient(ctx, id)
}

// PatientsByPhone lists every patient registered under a phone number,
// most recently created first. Shared household phones make this a list.
func (s *RegistryService) PatientsByPhone(ctx context.Context, phone string) ([]domain.Patient, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, invalidField("phone", "must not be empty")
	}
	return repo.FindPatientsByPhone(ctx, s.DB, phone)
}

// DeletePatient removes a patient record. Patients with consultation
// history are protected by the RESTRICT foreign key and the delete is
// rejected with ErrPatientInUse.
func (s *RegistryService) DeletePatient(ctx context.Context, id uint) error {
	err := repo.DeletePatient(ctx, s.DB, id)
	switch {
	case errors.Is(err, repo.ErrRestricted):
		return ErrPatientInUse
	case errors.Is(err, repo.ErrNotFound):
		return ErrPatientNotFound
	}
	return err
}

// RegisterWorker validates the fields and onboards a healthcare worker.
func (s *RegistryService) RegisterWorker(ctx context.Context, fullName, role string, specialization, facility, contact *string) (*domain.HealthcareWorker, error) {
	fullName = normalizeName(fullName)
	if err := validatePersonName(fullName); err != nil {
		return nil, err
	}

	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case domain.RoleDoctor, domain.RoleNurse, domain.RoleClinician:
	default:
		return nil, invalidField("role", "must be doctor, nurse, or clinician")
	}

	return repo.CreateWorker(ctx, s.DB, fullName, role, specialization, facility, contact)
}

// GetWorker fetches a worker by id.
func (s *RegistryService) GetWorker(ctx context.Context, id uint) (*domain.HealthcareWorker, error) {
	w, err := repo.GetWorker(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrWorkerNotFound
	}
	return w, err
}

// ListActiveWorkers returns all workers that have not been deactivated.
func (s *RegistryService) ListActiveWorkers(ctx context.Context) ([]domain.HealthcareWorker, error) {
	return repo.ListActiveWorkers(ctx, s.DB)
}

// DeactivateWorker soft-deletes a worker. The record stays for audit
// attribution on past prescriptions and reviews; the operation is
// idempotent.
func (s *RegistryService) DeactivateWorker(ctx context.Context, id uint) error {
	err := repo.DeactivateWorker(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrWorkerNotFound
	}
	return err
}

// normalizeName trims, collapses whitespace, and title-cases a person name.
func normalizeName(s string) string {
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return s
	}
	return nameCaser.String(s)
}

// validatePersonName requires at least two non-whitespace characters.
func validatePersonName(name string) error {
	if len(strings.ReplaceAll(name, " ", "")) < 2 {
		return invalidField("full_name", "must contain at least 2 non-whitespace characters")
	}
	return nil
}
