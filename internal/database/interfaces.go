package database

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"mediation-app/internal/models"
)

// ErrNotFound is returned by lookups when no row matches. Callers must treat
// an absent participant row and a row with can_talk=false as different
// conditions, so lookups never collapse absence into a zero value.
var ErrNotFound = errors.New("not found")

type UserRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	// ListParticipantUsers returns the users (with roles) that currently hold
	// a participant row in the mediation.
	ListParticipantUsers(ctx context.Context, mediationID uuid.UUID) ([]*models.User, error)
	// ListAvailableModerators returns moderation-eligible users that are not
	// muted participants of the mediation (the pool for private mediations).
	ListAvailableModerators(ctx context.Context, mediationID uuid.UUID) ([]*models.User, error)
}

type MediationRepository interface {
	CreateMediation(ctx context.Context, m *models.Mediation) error
	GetMediationByID(ctx context.Context, id uuid.UUID) (*models.Mediation, error)
	CloseMediation(ctx context.Context, id uuid.UUID, reason string) error
	ListMediationsByUser(ctx context.Context, userID uuid.UUID) ([]*models.MediationOverview, error)
}

type ParticipantRepository interface {
	GetParticipant(ctx context.Context, userID, mediationID uuid.UUID) (*models.Participant, error)
	ListParticipants(ctx context.Context, mediationID uuid.UUID) ([]*models.Participant, error)
	ListModerators(ctx context.Context, mediationID uuid.UUID) ([]*models.Participant, error)
	UpsertParticipant(ctx context.Context, p *models.Participant) error
	SaveParticipants(ctx context.Context, participants []*models.Participant) error
	SetCanTalk(ctx context.Context, userID, mediationID uuid.UUID, canTalk bool) error
	// MuteParticipant clears can_talk only when the target can currently talk
	// and is not a moderator; it reports whether a row changed. The precondition
	// and the write are one atomic operation.
	MuteParticipant(ctx context.Context, userID, mediationID uuid.UUID) (bool, error)
	// UnmuteParticipant restores can_talk only when the target is muted.
	UnmuteParticipant(ctx context.Context, userID, mediationID uuid.UUID) (bool, error)
}

type MessageRepository interface {
	SaveMessage(ctx context.Context, mediationID, senderID uuid.UUID, content string) (*models.Message, error)
	ListMessagesByMediation(ctx context.Context, mediationID uuid.UUID) ([]*models.Message, error)
}

type Database interface {
	UserRepository
	MediationRepository
	ParticipantRepository
	MessageRepository
	Close() error
}
