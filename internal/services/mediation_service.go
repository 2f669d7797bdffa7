package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mediation-app/internal/database"
	"mediation-app/internal/models"
	"mediation-app/pkg/logger"
)

// RoomNotifier delivers an administrative frame to every live connection in a
// mediation's room. Implemented by the websocket registry.
type RoomNotifier interface {
	NotifyRoom(mediationID uuid.UUID, frame models.OutboundFrame)
}

// MediationService orchestrates creation and closure of mediations, including
// seeding of the initial participant set and the automatic moderator call.
type MediationService struct {
	db           database.Database
	participants *ParticipantService
	rooms        RoomNotifier
}

func NewMediationService(db database.Database, participants *ParticipantService, rooms RoomNotifier) *MediationService {
	return &MediationService{db: db, participants: participants, rooms: rooms}
}

// CreateMediation creates the mediation, seeds its participants (every user
// for public mediations, the listed usernames plus the creator for private
// ones) and runs the moderator selector once.
func (s *MediationService) CreateMediation(ctx context.Context, req *models.CreateMediationRequest, creatorID uuid.UUID) (uuid.UUID, error) {
	creator, err := s.db.GetUserByID(ctx, creatorID)
	if errors.Is(err, database.ErrNotFound) {
		return uuid.Nil, NotFound(fmt.Sprintf("User not found with id: %s", creatorID))
	}
	if err != nil {
		return uuid.Nil, Internal("Error loading user", err)
	}

	mediation := &models.Mediation{
		ID:        uuid.New(),
		Title:     req.Title,
		IsPrivate: req.IsPrivate,
		CreatedBy: creator.ID,
	}
	if err := s.db.CreateMediation(ctx, mediation); err != nil {
		return uuid.Nil, Internal("Error creating mediation", err)
	}

	participants, err := s.buildInitialParticipants(ctx, mediation, creator, req.Participants)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.db.SaveParticipants(ctx, participants); err != nil {
		return uuid.Nil, Internal("Error saving participants", err)
	}

	if err := s.participants.AssignAutomaticModerator(ctx, mediation.ID); err != nil {
		return uuid.Nil, err
	}

	logger.Info("Mediation %s created by %s (%d participants)", mediation.ID, creator.Username, len(participants))
	return mediation.ID, nil
}

func (s *MediationService) buildInitialParticipants(ctx context.Context, mediation *models.Mediation, creator *models.User, usernames []string) ([]*models.Participant, error) {
	if !mediation.IsPrivate {
		users, err := s.db.ListUsers(ctx)
		if err != nil {
			return nil, Internal("Error listing users", err)
		}
		participants := make([]*models.Participant, 0, len(users))
		for _, user := range users {
			participants = append(participants, newParticipant(user.ID, mediation.ID))
		}
		return participants, nil
	}

	participants := make([]*models.Participant, 0, len(usernames)+1)
	creatorIncluded := false
	for _, username := range usernames {
		user, err := s.db.GetUserByUsername(ctx, strings.TrimSpace(username))
		if errors.Is(err, database.ErrNotFound) {
			return nil, NotFound(fmt.Sprintf("User not found with username: %s", username))
		}
		if err != nil {
			return nil, Internal("Error loading user", err)
		}
		if user.ID == creator.ID {
			creatorIncluded = true
		}
		participants = append(participants, newParticipant(user.ID, mediation.ID))
	}

	// The creator always belongs to their own mediation.
	if !creatorIncluded {
		participants = append(participants, newParticipant(creator.ID, mediation.ID))
	}
	return participants, nil
}

func newParticipant(userID, mediationID uuid.UUID) *models.Participant {
	return &models.Participant{
		UserID:      userID,
		MediationID: mediationID,
		CanTalk:     true,
		IsModerator: false,
	}
}

// CloseMediation marks the mediation solved with a reason and broadcasts the
// closure to the live room. Closing is terminal; only a moderator participant
// may close, and a mediation can be closed once.
func (s *MediationService) CloseMediation(ctx context.Context, userID, mediationID uuid.UUID, reason string) error {
	mediation, err := s.db.GetMediationByID(ctx, mediationID)
	if errors.Is(err, database.ErrNotFound) {
		return NotFound(fmt.Sprintf("Mediation not found with id: %s", mediationID))
	}
	if err != nil {
		return Internal("Error loading mediation", err)
	}
	if mediation.IsSolved {
		return Conflict("Mediation is already closed")
	}

	participant, err := s.db.GetParticipant(ctx, userID, mediationID)
	if errors.Is(err, database.ErrNotFound) {
		return Forbidden("User is not a participant of this mediation")
	}
	if err != nil {
		return Internal("Error loading participant", err)
	}
	if !participant.IsModerator {
		return Forbidden("User is not a moderator of this mediation")
	}

	if err := s.db.CloseMediation(ctx, mediationID, reason); err != nil {
		return Internal("Error closing mediation", err)
	}

	if s.rooms != nil {
		s.rooms.NotifyRoom(mediationID, models.InfoFrame(models.EventMediationClosed, map[string]any{
			"mediation_id": mediationID.String(),
			"closed_by":    participant.Username,
			"reason":       reason,
		}))
	}
	return nil
}

// GetAllMediationsByUser lists the mediations the user participates in.
func (s *MediationService) GetAllMediationsByUser(ctx context.Context, userID uuid.UUID) ([]*models.MediationOverview, error) {
	overviews, err := s.db.ListMediationsByUser(ctx, userID)
	if err != nil {
		return nil, Internal("Error listing mediations", err)
	}
	return overviews, nil
}

// GetMediationByID fetches one mediation.
func (s *MediationService) GetMediationByID(ctx context.Context, mediationID uuid.UUID) (*models.Mediation, error) {
	mediation, err := s.db.GetMediationByID(ctx, mediationID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, NotFound(fmt.Sprintf("Mediation not found with id: %s", mediationID))
	}
	if err != nil {
		return nil, Internal("Error loading mediation", err)
	}
	return mediation, nil
}
