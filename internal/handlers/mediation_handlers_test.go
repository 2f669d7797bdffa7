package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"mediation-app/internal/auth"
	"mediation-app/internal/config"
	"mediation-app/internal/database/memory"
	"mediation-app/internal/models"
	"mediation-app/internal/services"
	ws "mediation-app/internal/websocket"
)

const testSecret = "handler-test-secret"

type handlerEnv struct {
	db       *memory.DB
	handlers *MediationHandlers
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	cfg := &config.Config{JWT: config.JWTConfig{Secret: []byte(testSecret)}}
	db := memory.NewDB()
	participants := services.NewParticipantService(db)
	mediations := services.NewMediationService(db, participants, ws.NewRegistry())
	return &handlerEnv{
		db:       db,
		handlers: NewMediationHandlers(mediations, auth.NewService(cfg)),
	}
}

func bearerToken(t *testing.T, user *models.User) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID.String(),
		"username": user.Username,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestCreateMediation(t *testing.T) {
	req := require.New(t)
	env := newHandlerEnv(t)
	creator := env.db.AddUser("creator", models.RoleLeader)
	env.db.AddUser("neighbour")

	r := httptest.NewRequest("POST", "/mediations", jsonBody(t, models.CreateMediationRequest{
		Title: "Fence dispute",
	}))
	r.Header.Set("Authorization", bearerToken(t, creator))
	w := httptest.NewRecorder()
	env.handlers.CreateMediation(w, r)

	req.Equal(http.StatusCreated, w.Code)
	var resp map[string]string
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	mediationID, err := uuid.Parse(resp["mediation_id"])
	req.NoError(err)

	// Public mediation seeded every user as participant
	participants, err := env.db.ListParticipants(context.Background(), mediationID)
	req.NoError(err)
	req.Len(participants, 2)
}

func TestCreateMediation_Rejections(t *testing.T) {
	req := require.New(t)
	env := newHandlerEnv(t)
	creator := env.db.AddUser("creator")

	// No credential
	r := httptest.NewRequest("POST", "/mediations", jsonBody(t, models.CreateMediationRequest{Title: "x"}))
	w := httptest.NewRecorder()
	env.handlers.CreateMediation(w, r)
	req.Equal(http.StatusUnauthorized, w.Code)

	// Missing title fails validation
	r = httptest.NewRequest("POST", "/mediations", jsonBody(t, models.CreateMediationRequest{}))
	r.Header.Set("Authorization", bearerToken(t, creator))
	w = httptest.NewRecorder()
	env.handlers.CreateMediation(w, r)
	req.Equal(http.StatusBadRequest, w.Code)

	// Unknown private participant
	r = httptest.NewRequest("POST", "/mediations", jsonBody(t, models.CreateMediationRequest{
		Title:        "x",
		IsPrivate:    true,
		Participants: []string{"nobody"},
	}))
	r.Header.Set("Authorization", bearerToken(t, creator))
	w = httptest.NewRecorder()
	env.handlers.CreateMediation(w, r)
	req.Equal(http.StatusNotFound, w.Code)
}

func TestListMediations(t *testing.T) {
	req := require.New(t)
	env := newHandlerEnv(t)
	creator := env.db.AddUser("creator")
	env.db.AddUser("alice")

	r := httptest.NewRequest("POST", "/mediations", jsonBody(t, models.CreateMediationRequest{
		Title:        "Parking row",
		IsPrivate:    true,
		Participants: []string{"alice"},
	}))
	r.Header.Set("Authorization", bearerToken(t, creator))
	w := httptest.NewRecorder()
	env.handlers.CreateMediation(w, r)
	req.Equal(http.StatusCreated, w.Code)

	r = httptest.NewRequest("GET", "/mediations", nil)
	r.Header.Set("Authorization", bearerToken(t, creator))
	w = httptest.NewRecorder()
	env.handlers.ListMediations(w, r)

	req.Equal(http.StatusOK, w.Code)
	var resp struct {
		Mediations []models.MediationOverview `json:"mediations"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Len(resp.Mediations, 1)
	req.Equal("private", resp.Mediations[0].Kind)
}

func TestCloseMediation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newHandlerEnv(t)

	moderator := env.db.AddUser("mod", models.RoleSafetyCommittee)
	member := env.db.AddUser("member")

	mediation := &models.Mediation{ID: uuid.New(), Title: "Dispute", CreatedBy: member.ID}
	req.NoError(env.db.CreateMediation(ctx, mediation))
	req.NoError(env.db.UpsertParticipant(ctx, &models.Participant{UserID: member.ID, MediationID: mediation.ID, CanTalk: true}))
	req.NoError(env.db.UpsertParticipant(ctx, &models.Participant{UserID: moderator.ID, MediationID: mediation.ID, CanTalk: true, IsModerator: true}))

	// A plain member may not close
	r := httptest.NewRequest("POST", "/mediations/"+mediation.ID.String()+"/close",
		jsonBody(t, models.CloseMediationRequest{Reason: "resolved"}))
	r.Header.Set("Authorization", bearerToken(t, member))
	w := httptest.NewRecorder()
	env.handlers.CloseMediation(w, r, mediation.ID.String())
	req.Equal(http.StatusForbidden, w.Code)

	// The moderator closes it
	r = httptest.NewRequest("POST", "/mediations/"+mediation.ID.String()+"/close",
		jsonBody(t, models.CloseMediationRequest{Reason: "resolved"}))
	r.Header.Set("Authorization", bearerToken(t, moderator))
	w = httptest.NewRecorder()
	env.handlers.CloseMediation(w, r, mediation.ID.String())
	req.Equal(http.StatusOK, w.Code)

	stored, err := env.db.GetMediationByID(ctx, mediation.ID)
	req.NoError(err)
	req.True(stored.IsSolved)

	// Closing twice conflicts
	r = httptest.NewRequest("POST", "/mediations/"+mediation.ID.String()+"/close",
		jsonBody(t, models.CloseMediationRequest{Reason: "again"}))
	r.Header.Set("Authorization", bearerToken(t, moderator))
	w = httptest.NewRecorder()
	env.handlers.CloseMediation(w, r, mediation.ID.String())
	req.Equal(http.StatusConflict, w.Code)

	// Bad identifier
	r = httptest.NewRequest("POST", "/mediations/nope/close", jsonBody(t, models.CloseMediationRequest{Reason: "x"}))
	r.Header.Set("Authorization", bearerToken(t, moderator))
	w = httptest.NewRecorder()
	env.handlers.CloseMediation(w, r, "nope")
	req.Equal(http.StatusBadRequest, w.Code)
}
