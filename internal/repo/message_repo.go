// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ConversationMessage model.
//
// Sequence numbers: the store, not the caller, assigns them. MaxSequence +
// CreateMessage are meant to run inside one transaction; the unique index
// on (session_id, sequence_number) backstops any interleaving the caller
// failed to serialize, surfacing ErrDuplicate so the write can be retried
// with a recomputed sequence.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ihirwe/go-triage-backend/internal/domain"
)

// MaxSequence returns the highest sequence number recorded for a session,
// or 0 when the conversation is empty.
func MaxSequence(ctx context.Context, db *gorm.DB, sessionID uint) (int, error) {
	var last int
	err := db.WithContext(ctx).
		Raw("SELECT COALESCE(MAX(sequence_number), 0) FROM conversation_messages WHERE session_id = ?", sessionID).
		Scan(&last).Error
	return last, err
}

// CreateMessage inserts a conversation turn with an explicit sequence
// number. A colliding (session, sequence) pair returns ErrDuplicate.
func CreateMessage(ctx context.Context, db *gorm.DB, sessionID uint, sender, text string, seq int, metadata *string) (*domain.ConversationMessage, error) {
	m := &domain.ConversationMessage{
		SessionID:      sessionID,
		Sender:         sender,
		MessageText:    text,
		SequenceNumber: seq,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return m, nil
}

// ListMessages returns the full dialogue of a session in sequence order.
func ListMessages(ctx context.Context, db *gorm.DB, sessionID uint) ([]domain.ConversationMessage, error) {
	var out []domain.ConversationMessage
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("sequence_number asc").
		Find(&out).Error
	return out, err
}

// ListMessagesPage returns a paginated slice of the dialogue, still in
// sequence order, so callers can restart iteration at any offset.
func ListMessagesPage(ctx context.Context, db *gorm.DB, sessionID uint, offset, limit int) ([]domain.ConversationMessage, error) {
	var out []domain.ConversationMessage
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("sequence_number asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, sessionID uint) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM conversation_messages WHERE session_id = ?", sessionID).
		Scan(&total).Error
	return total, err
}

// GetMessage fetches a message by id, or ErrNotFound.
func GetMessage(ctx context.Context, db *gorm.DB, id uint) (*domain.ConversationMessage, error) {
	var m domain.ConversationMessage
	if err := db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
