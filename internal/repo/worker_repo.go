// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// HealthcareWorker model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ihirwe/go-triage-backend/internal/domain"
)

// CreateWorker inserts a new HealthcareWorker row, active by default.
func CreateWorker(ctx context.Context, db *gorm.DB, fullName, role string, specialization, facility, contact *string) (*domain.HealthcareWorker, error) {
	w := &domain.HealthcareWorker{
		FullName:       fullName,
		Role:           role,
		Specialization: specialization,
		Facility:       facility,
		ContactInfo:    contact,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(w).Error; err != nil {
		return nil, err
	}
	return w, nil
}

// GetWorker fetches a worker by id, or ErrNotFound.
func GetWorker(ctx context.Context, db *gorm.DB, id uint) (*domain.HealthcareWorker, error) {
	var w domain.HealthcareWorker
	if err := db.WithContext(ctx).First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// ListActiveWorkers returns all active workers ordered by name. Inactive
// workers stay in the table for audit attribution but never appear here.
func ListActiveWorkers(ctx context.Context, db *gorm.DB) ([]domain.HealthcareWorker, error) {
	var out []domain.HealthcareWorker
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("full_name asc").
		Find(&out).Error
	return out, err
}

// DeactivateWorker soft-deletes a worker by clearing the active flag.
// Re-deactivating an already inactive worker is a no-op, not an error.
// Returns ErrNotFound when the worker does not exist.
func DeactivateWorker(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).
		Model(&domain.HealthcareWorker{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish "missing" from "already inactive".
		var n int64
		if err := db.WithContext(ctx).Model(&domain.HealthcareWorker{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}
