package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"mediation-app/internal/config"
)

// Identity is the verified caller behind a bearer credential. Token issuance
// lives in the platform's auth service; this package only verifies.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

type Service struct {
	cfg *config.Config
}

func NewService(cfg *config.Config) *Service {
	return &Service{cfg: cfg}
}

// VerifyToken validates an HS256 bearer token and extracts the identity claims.
func (s *Service) VerifyToken(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.JWT.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	rawUserID, ok := (*claims)["user_id"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid user ID in token")
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %w", err)
	}

	username, ok := (*claims)["username"].(string)
	if !ok || username == "" {
		return nil, fmt.Errorf("invalid username in token")
	}

	return &Identity{UserID: userID, Username: username}, nil
}

// IdentityFromRequest extracts and verifies the bearer credential of an HTTP
// request, accepting the Authorization header or a token query parameter (the
// latter for websocket handshakes from browsers).
func (s *Service) IdentityFromRequest(r *http.Request) (*Identity, error) {
	tokenString := ""
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	} else {
		tokenString = r.URL.Query().Get("token")
	}
	if tokenString == "" {
		return nil, fmt.Errorf("missing token")
	}

	return s.VerifyToken(tokenString)
}
