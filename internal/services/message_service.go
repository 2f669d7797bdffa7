package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mediation-app/internal/database"
	"mediation-app/internal/models"
)

// MessageService validates and persists room messages.
type MessageService struct {
	db           database.Database
	participants *ParticipantService
}

func NewMessageService(db database.Database, participants *ParticipantService) *MessageService {
	return &MessageService{db: db, participants: participants}
}

// SaveMessage runs the send pipeline: mediation must exist and be open, the
// sender must exist and be allowed to talk, and the content must not be blank.
// The persisted message carries trimmed content and a server-assigned timestamp.
func (s *MessageService) SaveMessage(ctx context.Context, mediationID, senderID uuid.UUID, content string) (*models.Message, error) {
	mediation, err := s.db.GetMediationByID(ctx, mediationID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, NotFound(fmt.Sprintf("Mediation not found with id: %s", mediationID))
	}
	if err != nil {
		return nil, Internal("Error loading mediation", err)
	}

	if mediation.IsSolved {
		return nil, Forbidden("Cannot send messages: this mediation has been closed")
	}

	sender, err := s.db.GetUserByID(ctx, senderID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, NotFound(fmt.Sprintf("User not found with id: %s", senderID))
	}
	if err != nil {
		return nil, Internal("Error loading user", err)
	}

	canTalk, err := s.participants.CanUserTalk(ctx, senderID, mediationID)
	if err != nil {
		return nil, Internal("Error checking permissions", err)
	}
	if !canTalk {
		return nil, Forbidden("User is muted and cannot send messages")
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, BadRequest("Message content cannot be empty")
	}

	msg, err := s.db.SaveMessage(ctx, mediationID, senderID, trimmed)
	if err != nil {
		return nil, Internal("Error saving message", err)
	}
	msg.SenderUsername = sender.Username

	return msg, nil
}

// GetMessagesByMediation returns all messages of a mediation, oldest first.
func (s *MessageService) GetMessagesByMediation(ctx context.Context, mediationID uuid.UUID) ([]*models.Message, error) {
	return s.db.ListMessagesByMediation(ctx, mediationID)
}
