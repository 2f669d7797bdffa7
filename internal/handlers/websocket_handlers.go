package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"mediation-app/internal/auth"
	"mediation-app/internal/services"
	ws "mediation-app/internal/websocket"
	"mediation-app/pkg/logger"
)

type WebSocketHandlers struct {
	authService  *auth.Service
	participants *services.ParticipantService
	messages     *services.MessageService
	registry     *ws.Registry
	upgrader     websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, participants *services.ParticipantService,
	messages *services.MessageService, registry *ws.Registry) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService:  authService,
		participants: participants,
		messages:     messages,
		registry:     registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

// HandleWebSocket verifies the bearer credential and upgrades the connection.
// No room logic runs before the identity check passes.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authService.IdentityFromRequest(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.registry, h.participants, h.messages, conn, identity.UserID, identity.Username)
	go client.Run()
}
