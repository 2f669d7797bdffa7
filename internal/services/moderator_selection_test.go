package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"mediation-app/internal/database/memory"
	"mediation-app/internal/models"
)

func moderatorIDs(t *testing.T, db *memory.DB, mediationID uuid.UUID) []uuid.UUID {
	t.Helper()
	moderators, err := db.ListModerators(context.Background(), mediationID)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(moderators))
	for _, m := range moderators {
		ids = append(ids, m.UserID)
	}
	return ids
}

func TestAssignAutomaticModerator_PublicPicksHighestRank(t *testing.T) {
	req := require.New(t)
	db := memory.NewDB()
	svc := NewParticipantService(db)

	low := db.AddUser("low", models.RoleModerator)
	mid := db.AddUser("mid", models.RoleLeader)
	high := db.AddUser("high", models.RoleSafetyCommittee)
	mediationID := seedMediation(t, db, low, false, low, mid, high)

	req.NoError(svc.AssignAutomaticModerator(context.Background(), mediationID))

	req.Equal([]uuid.UUID{high.ID}, moderatorIDs(t, db, mediationID))
}

func TestAssignAutomaticModerator_PublicSingleEligibleCandidate(t *testing.T) {
	req := require.New(t)
	db := memory.NewDB()
	svc := NewParticipantService(db)

	plain1 := db.AddUser("plain1")
	plain2 := db.AddUser("plain2")
	eligible := db.AddUser("eligible", models.RoleModerator)
	mediationID := seedMediation(t, db, plain1, false, plain1, plain2, eligible)

	req.NoError(svc.AssignAutomaticModerator(context.Background(), mediationID))

	req.Equal([]uuid.UUID{eligible.ID}, moderatorIDs(t, db, mediationID))
}

func TestAssignAutomaticModerator_Idempotent(t *testing.T) {
	req := require.New(t)
	db := memory.NewDB()
	svc := NewParticipantService(db)

	eligible := db.AddUser("eligible", models.RoleLeader)
	mediationID := seedMediation(t, db, eligible, false, eligible)

	req.NoError(svc.AssignAutomaticModerator(context.Background(), mediationID))
	req.NoError(svc.AssignAutomaticModerator(context.Background(), mediationID))

	req.Len(moderatorIDs(t, db, mediationID), 1)
}

func TestAssignAutomaticModerator_PrivatePicksFromOutside(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := memory.NewDB()
	svc := NewParticipantService(db)

	alice := db.AddUser("alice")
	bob := db.AddUser("bob")
	outsider := db.AddUser("outsider", models.RoleLeader)
	mediationID := seedMediation(t, db, alice, true, alice, bob)

	req.NoError(svc.AssignAutomaticModerator(ctx, mediationID))

	// The outsider got a fresh participant row with full permissions
	req.Equal([]uuid.UUID{outsider.ID}, moderatorIDs(t, db, mediationID))
	p, err := db.GetParticipant(ctx, outsider.ID, mediationID)
	req.NoError(err)
	req.True(p.CanTalk)
	req.True(p.IsModerator)
}

func TestAssignAutomaticModerator_PrivateSkipsMutedParticipants(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := memory.NewDB()
	svc := NewParticipantService(db)

	alice := db.AddUser("alice")
	muted := db.AddUser("muted-leader", models.RoleSafetyCommittee)
	outsider := db.AddUser("outsider", models.RoleModerator)
	mediationID := seedMediation(t, db, alice, true, alice, muted)
	req.NoError(db.SetCanTalk(ctx, muted.ID, mediationID, false))

	req.NoError(svc.AssignAutomaticModerator(ctx, mediationID))

	// The higher-ranked but muted participant is out of the pool
	req.Equal([]uuid.UUID{outsider.ID}, moderatorIDs(t, db, mediationID))
}

func TestAssignAutomaticModerator_NoCandidates(t *testing.T) {
	req := require.New(t)
	db := memory.NewDB()
	svc := NewParticipantService(db)

	plain := db.AddUser("plain")
	mediationID := seedMediation(t, db, plain, false, plain)

	// No eligible user anywhere: the mediation simply stays unmoderated
	req.NoError(svc.AssignAutomaticModerator(context.Background(), mediationID))
	req.Empty(moderatorIDs(t, db, mediationID))
}
