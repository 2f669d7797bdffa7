package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"mediation-app/internal/config"
)

const testSecret = "test-secret"

func newTestService() *Service {
	return NewService(&config.Config{JWT: config.JWTConfig{Secret: []byte(testSecret)}})
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(userID uuid.UUID) jwt.MapClaims {
	return jwt.MapClaims{
		"user_id":  userID.String(),
		"username": "alice",
		"exp":      time.Now().Add(time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
}

func TestVerifyToken(t *testing.T) {
	req := require.New(t)
	svc := newTestService()
	userID := uuid.New()

	identity, err := svc.VerifyToken(signToken(t, testSecret, validClaims(userID)))
	req.NoError(err)
	req.Equal(userID, identity.UserID)
	req.Equal("alice", identity.Username)
}

func TestVerifyToken_Rejections(t *testing.T) {
	req := require.New(t)
	svc := newTestService()
	userID := uuid.New()

	// Wrong secret
	_, err := svc.VerifyToken(signToken(t, "other-secret", validClaims(userID)))
	req.Error(err)

	// Expired
	claims := validClaims(userID)
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	_, err = svc.VerifyToken(signToken(t, testSecret, claims))
	req.Error(err)

	// Missing username
	claims = validClaims(userID)
	delete(claims, "username")
	_, err = svc.VerifyToken(signToken(t, testSecret, claims))
	req.Error(err)

	// Unparseable user id
	claims = validClaims(userID)
	claims["user_id"] = "not-a-uuid"
	_, err = svc.VerifyToken(signToken(t, testSecret, claims))
	req.Error(err)

	_, err = svc.VerifyToken("garbage")
	req.Error(err)
}

func TestIdentityFromRequest(t *testing.T) {
	req := require.New(t)
	svc := newTestService()
	userID := uuid.New()
	token := signToken(t, testSecret, validClaims(userID))

	// Authorization header
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	identity, err := svc.IdentityFromRequest(r)
	req.NoError(err)
	req.Equal(userID, identity.UserID)

	// Query parameter fallback for browser websocket handshakes
	r = httptest.NewRequest("GET", "/ws?token="+token, nil)
	identity, err = svc.IdentityFromRequest(r)
	req.NoError(err)
	req.Equal(userID, identity.UserID)

	// No credential at all
	r = httptest.NewRequest("GET", "/ws", nil)
	_, err = svc.IdentityFromRequest(r)
	req.Error(err)
}
