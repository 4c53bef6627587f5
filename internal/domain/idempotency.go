// Package domain defines the core persistence models for the application.
package domain

import "time"

// Idempotency records the result of a previously processed write request,
// keyed by (session_id, key). It enables safe retries for message-append
// POSTs by returning the originally produced message without appending a
// duplicate turn.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	SessionID uint      `gorm:"not null;uniqueIndex:ux_session_key,priority:1"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_session_key,priority:2"`
	MessageID uint      `gorm:"not null"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
