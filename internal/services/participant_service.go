package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"mediation-app/internal/database"
	"mediation-app/internal/models"
	"mediation-app/pkg/logger"
)

// ParticipantService owns the participant permission model and the automatic
// moderator selection algorithm.
type ParticipantService struct {
	db database.Database
}

func NewParticipantService(db database.Database) *ParticipantService {
	return &ParticipantService{db: db}
}

// CanUserJoinRoom reports whether a participant row exists for the pair. A
// muted participant can still join; muting only blocks talking.
func (s *ParticipantService) CanUserJoinRoom(ctx context.Context, userID, mediationID uuid.UUID) (bool, error) {
	_, err := s.db.GetParticipant(ctx, userID, mediationID)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CanUserTalk reports the can_talk flag of the participant row. Absence of a
// row means the user cannot talk, but stays a distinct condition from a row
// with can_talk=false for callers that need it.
func (s *ParticipantService) CanUserTalk(ctx context.Context, userID, mediationID uuid.UUID) (bool, error) {
	p, err := s.db.GetParticipant(ctx, userID, mediationID)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.CanTalk, nil
}

// CanUserModerate requires both the participant's is_moderator flag and a
// moderation-eligible role on the user. A participant flagged moderator whose
// role was later revoked cannot moderate.
func (s *ParticipantService) CanUserModerate(ctx context.Context, userID, mediationID uuid.UUID) (bool, error) {
	p, err := s.db.GetParticipant(ctx, userID, mediationID)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !p.IsModerator {
		return false, nil
	}

	user, err := s.db.GetUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.CanModerate(), nil
}

// MuteUser sets can_talk=false on the target. The requester must be able to
// moderate, the target must not be a moderator and must currently be able to
// talk. Returns false when there is nothing to do or the requester is not
// authorized; an error only signals an unexpected store failure. The target
// preconditions live in the store write itself, so a target promoted to
// moderator mid-request can never end up muted.
func (s *ParticipantService) MuteUser(ctx context.Context, targetUserID, mediationID, requesterID uuid.UUID) (bool, error) {
	allowed, err := s.CanUserModerate(ctx, requesterID, mediationID)
	if err != nil || !allowed {
		return false, err
	}

	return s.db.MuteParticipant(ctx, targetUserID, mediationID)
}

// UnmuteUser sets can_talk=true on the target; it succeeds only when the
// target currently cannot talk.
func (s *ParticipantService) UnmuteUser(ctx context.Context, targetUserID, mediationID, requesterID uuid.UUID) (bool, error) {
	allowed, err := s.CanUserModerate(ctx, requesterID, mediationID)
	if err != nil || !allowed {
		return false, err
	}

	return s.db.UnmuteParticipant(ctx, targetUserID, mediationID)
}

// GetAllParticipants returns every participant of the mediation, used for the
// moderator roster on joinRoom.
func (s *ParticipantService) GetAllParticipants(ctx context.Context, mediationID uuid.UUID) ([]*models.Participant, error) {
	return s.db.ListParticipants(ctx, mediationID)
}

// AssignAutomaticModerator picks the best available moderator for a mediation
// and promotes them. Called exactly once right after the mediation and its
// initial participants are created. No-op when a moderator already exists;
// leaving the mediation without a moderator is not an error.
func (s *ParticipantService) AssignAutomaticModerator(ctx context.Context, mediationID uuid.UUID) error {
	moderators, err := s.db.ListModerators(ctx, mediationID)
	if err != nil {
		return err
	}
	if len(moderators) > 0 {
		return nil
	}

	mediation, err := s.db.GetMediationByID(ctx, mediationID)
	if errors.Is(err, database.ErrNotFound) {
		return NotFound(fmt.Sprintf("Mediation not found with id: %s", mediationID))
	}
	if err != nil {
		return err
	}

	var winner *models.User
	if mediation.IsPrivate {
		winner, err = s.selectModeratorFromOutside(ctx, mediationID)
	} else {
		winner, err = s.selectModeratorFromParticipants(ctx, mediationID)
	}
	if err != nil {
		return err
	}
	if winner == nil {
		logger.Debug("No suitable moderator found for mediation %s", mediationID)
		return nil
	}

	return s.promote(ctx, winner.ID, mediationID)
}

// selectModeratorFromParticipants picks the highest-ranked eligible user among
// the current participants (public mediations).
func (s *ParticipantService) selectModeratorFromParticipants(ctx context.Context, mediationID uuid.UUID) (*models.User, error) {
	users, err := s.db.ListParticipantUsers(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	candidates := lo.Filter(users, func(u *models.User, _ int) bool {
		return u.CanModerate()
	})
	return lo.MaxBy(candidates, func(a, b *models.User) bool {
		return a.ModerationRank() > b.ModerationRank()
	}), nil
}

// selectModeratorFromOutside picks the highest-ranked eligible user drawn from
// outside the conflict (private mediations).
func (s *ParticipantService) selectModeratorFromOutside(ctx context.Context, mediationID uuid.UUID) (*models.User, error) {
	candidates, err := s.db.ListAvailableModerators(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	return lo.MaxBy(candidates, func(a, b *models.User) bool {
		return a.ModerationRank() > b.ModerationRank()
	}), nil
}

// promote flips is_moderator on an existing participant row or inserts a new
// one for a winner drawn from outside the mediation.
func (s *ParticipantService) promote(ctx context.Context, userID, mediationID uuid.UUID) error {
	existing, err := s.db.GetParticipant(ctx, userID, mediationID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}

	participant := &models.Participant{
		UserID:      userID,
		MediationID: mediationID,
		CanTalk:     true,
		IsModerator: true,
	}
	if existing != nil {
		participant.CanTalk = existing.CanTalk
	}
	return s.db.UpsertParticipant(ctx, participant)
}
