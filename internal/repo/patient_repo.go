// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Patient
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ihirwe/go-triage-backend/internal/domain"
)

// CreatePatient inserts a new Patient row. The (phone_number, full_name)
// pair is unique; a duplicate insert returns ErrDuplicate so the service
// layer can fall back to the existing identity.
func CreatePatient(ctx context.Context, db *gorm.DB, fullName, phone, language string, location *string) (*domain.Patient, error) {
	p := &domain.Patient{
		FullName:          fullName,
		PhoneNumber:       phone,
		PreferredLanguage: language,
		Location:          location,
		CreatedAt:         time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return p, nil
}

// GetPatient fetches a patient by id, or ErrNotFound.
func GetPatient(ctx context.Context, db *gorm.DB, id uint) (*domain.Patient, error) {
	var p domain.Patient
	if err := db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPatient fetches the patient identified by the (phone, name) pair,
// or ErrNotFound.
func FindPatient(ctx context.Context, db *gorm.DB, phone, fullName string) (*domain.Patient, error) {
	var p domain.Patient
	err := db.WithContext(ctx).
		Where("phone_number = ? AND full_name = ?", phone, fullName).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPatientsByPhone returns every patient registered under a phone
// number, most recently created first. Shared household phones make this a
// list, not a single row.
func FindPatientsByPhone(ctx context.Context, db *gorm.DB, phone string) ([]domain.Patient, error) {
	var out []domain.Patient
	err := db.WithContext(ctx).
		Where("phone_number = ?", phone).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// UpdatePatient applies profile edits to a patient. GORM stamps updated_at
// as part of the same write. Returns ErrNotFound when no row matches.
func UpdatePatient(ctx context.Context, db *gorm.DB, id uint, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Patient{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeletePatient removes a patient row. The sessions foreign key is
// RESTRICT, so the engine rejects the delete while any session references
// the patient; that rejection surfaces as ErrRestricted.
func DeletePatient(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.Patient{}, id)
	if res.Error != nil {
		if isFKViolation(res.Error) {
			return ErrRestricted
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// patientExists reports whether a patient row exists, without loading it.
func patientExists(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Patient{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// PatientExists is the exported variant used by the service layer.
func PatientExists(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	return patientExists(ctx, db, id)
}
