package models

import "github.com/google/uuid"

// Participant is a user's membership and permission record within one
// mediation. The pair (UserID, MediationID) is the composite key.
type Participant struct {
	UserID      uuid.UUID `json:"user_id"`
	MediationID uuid.UUID `json:"mediation_id"`
	CanTalk     bool      `json:"can_talk"`
	IsModerator bool      `json:"is_moderator"`
	Username    string    `json:"username,omitempty"`
}

// ParticipantStatus is the roster entry moderators receive on joinRoom.
type ParticipantStatus struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IsMuted  bool      `json:"is_muted"`
}
