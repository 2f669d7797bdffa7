package models

import (
	"time"

	"github.com/google/uuid"
)

type Mediation struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	IsPrivate       bool      `json:"is_private"`
	IsSolved        bool      `json:"is_solved"`
	CloseReason     *string   `json:"close_reason,omitempty"`
	CreatedBy       uuid.UUID `json:"created_by"`
	CreatorUsername string    `json:"creator_username,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// MediationOverview is the listing shape returned by GET /mediations.
type MediationOverview struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	CreatedBy string    `json:"created_by"`
}

type CreateMediationRequest struct {
	Title        string   `json:"title" validate:"required,max=100"`
	IsPrivate    bool     `json:"is_private"`
	Participants []string `json:"participants"`
}

type CloseMediationRequest struct {
	Reason string `json:"reason" validate:"required"`
}
