// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file defines the error values and the constraint
// detection helpers shared by all repository files.
//
// Error semantics:
//   - Missing rows are reported as ErrNotFound (alias of
//     gorm.ErrRecordNotFound).
//   - UNIQUE violations are reported as ErrDuplicate so the service layer
//     can translate them into domain conflicts (duplicate prediction,
//     duplicate patient identity, colliding sequence number).
//   - FOREIGN KEY violations on restricted relations are reported as
//     ErrRestricted; they indicate an attempt to delete a row the medical
//     audit trail still references.
//   - Other DB errors are propagated untouched.
package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a UNIQUE constraint violation.
var ErrDuplicate = errors.New("duplicate")

// ErrRestricted indicates a rejected delete: another row still references
// the target through a RESTRICT foreign key.
var ErrRestricted = errors.New("restricted by reference")

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// glebarez/sqlite often returns plain-text errors for these.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// isFKViolation reports whether err is a FOREIGN KEY constraint failure.
func isFKViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "foreign key constraint failed") ||
		strings.Contains(low, "constraint failed: foreign key")
}
