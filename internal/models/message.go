package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is immutable once created; SentAt ascending is the ordering key
// within a mediation.
type Message struct {
	ID             uuid.UUID `json:"id"`
	MediationID    uuid.UUID `json:"-"`
	SenderID       uuid.UUID `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sent_at"`
}
