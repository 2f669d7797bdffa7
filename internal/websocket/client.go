package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"mediation-app/internal/models"
	"mediation-app/internal/services"
	"mediation-app/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is the per-connection room controller: it decodes inbound events,
// consults the services and fans results out through the registry. A client is
// in at most one room at a time.
type Client struct {
	registry     *Registry
	participants *services.ParticipantService
	messages     *services.MessageService

	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once

	userID   uuid.UUID
	username string

	// currentRoom is only touched from the read loop.
	currentRoom *RoomID
}

func NewClient(registry *Registry, participants *services.ParticipantService, messages *services.MessageService,
	conn *websocket.Conn, userID uuid.UUID, username string) *Client {
	return &Client{
		registry:     registry,
		participants: participants,
		messages:     messages,
		conn:         conn,
		send:         make(chan []byte, 256),
		done:         make(chan struct{}),
		userID:       userID,
		username:     username,
	}
}

func (c *Client) UserID() uuid.UUID {
	return c.userID
}

func (c *Client) Username() string {
	return c.username
}

// Deliver queues a frame for the write pump without blocking. It reports false
// once the client is shutting down or its buffer is full.
func (c *Client) Deliver(frame models.OutboundFrame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		logger.Error("Error marshaling frame: %v", err)
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Run sends the handshake acknowledgement and serves the connection until it
// closes. It blocks for the lifetime of the connection.
func (c *Client) Run() {
	c.Deliver(models.SuccessFrame(models.EventConnected, map[string]string{
		"message": "WebSocket connection established",
	}))

	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.leaveCurrentRoom()
		c.stop()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error for %s: %v", c.username, err)
			}
			break
		}
		c.handleFrame(context.Background(), payload)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error for %s: %v", c.username, err)
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// handleFrame decodes one inbound frame and dispatches it. A malformed or
// unknown frame yields an error response and leaves the connection open.
func (c *Client) handleFrame(ctx context.Context, payload []byte) {
	event, err := DecodeEvent(payload)
	if err != nil {
		if errors.Is(err, errUnknownEvent) {
			c.Deliver(models.ErrorFrame("Unknown event type"))
		} else {
			c.Deliver(models.ErrorFrame("Error processing message"))
		}
		return
	}

	switch ev := event.(type) {
	case *JoinRoomEvent:
		c.handleJoinRoom(ctx, ev)
	case *SendMessageEvent:
		c.handleSendMessage(ctx, ev)
	case *LeaveRoomEvent:
		c.handleLeaveRoom(ev)
	case *MuteUserEvent:
		c.handleMuteToggle(ctx, ev.MediationID, ev.TargetUserID, true)
	case *UnmuteUserEvent:
		c.handleMuteToggle(ctx, ev.MediationID, ev.TargetUserID, false)
	}
}

func (c *Client) handleJoinRoom(ctx context.Context, ev *JoinRoomEvent) {
	canJoin, err := c.participants.CanUserJoinRoom(ctx, c.userID, ev.MediationID)
	if err != nil {
		logger.Error("Error checking join permission: %v", err)
		c.Deliver(models.ErrorFrame("Error joining room"))
		return
	}
	if !canJoin {
		c.Deliver(models.ErrorFrame("You don't have permission to join this room"))
		return
	}

	// Resolve the session's standing before touching the registry, so a
	// lookup failure cannot leave the connection half-joined.
	canTalk, err := c.participants.CanUserTalk(ctx, c.userID, ev.MediationID)
	if err != nil {
		logger.Error("Error checking talk permission: %v", err)
		c.Deliver(models.ErrorFrame("Error joining room"))
		return
	}
	isModerator, err := c.participants.CanUserModerate(ctx, c.userID, ev.MediationID)
	if err != nil {
		logger.Error("Error checking moderator permission: %v", err)
		c.Deliver(models.ErrorFrame("Error joining room"))
		return
	}

	roomID := RoomForMediation(ev.MediationID)
	if c.currentRoom != nil && *c.currentRoom != roomID {
		c.registry.Leave(*c.currentRoom, c)
	}
	c.registry.Join(roomID, c)
	c.currentRoom = &roomID

	data := map[string]any{
		"mediation_id": ev.MediationID.String(),
		"is_muted":     !canTalk,
		"is_moderator": isModerator,
	}
	if isModerator {
		if roster, err := c.participants.GetAllParticipants(ctx, ev.MediationID); err == nil {
			data["participants_status"] = lo.Map(roster, func(p *models.Participant, _ int) models.ParticipantStatus {
				return models.ParticipantStatus{UserID: p.UserID, Username: p.Username, IsMuted: !p.CanTalk}
			})
		}
	}
	c.Deliver(models.SuccessFrame(models.EventRoomJoined, data))

	// Transcript replay goes to the joining connection only.
	history, err := c.messages.GetMessagesByMediation(ctx, ev.MediationID)
	if err == nil && len(history) > 0 {
		c.Deliver(models.SuccessFrame(models.EventMessageHistory, map[string]any{
			"mediation_id": ev.MediationID.String(),
			"messages":     history,
		}))
	}
}

func (c *Client) handleSendMessage(ctx context.Context, ev *SendMessageEvent) {
	msg, err := c.messages.SaveMessage(ctx, ev.MediationID, c.userID, ev.Content)
	if err != nil {
		c.Deliver(models.ErrorFrame(err.Error()))
		return
	}

	data := map[string]any{
		"mediation_id": ev.MediationID.String(),
		"message":      msg,
	}
	c.Deliver(models.SuccessFrame(models.EventMessageSent, data))
	c.registry.Broadcast(RoomForMediation(ev.MediationID), models.SuccessFrame(models.EventNewMessage, data), c)
}

func (c *Client) handleLeaveRoom(ev *LeaveRoomEvent) {
	roomID := RoomForMediation(ev.MediationID)
	c.registry.Leave(roomID, c)
	if c.currentRoom != nil && *c.currentRoom == roomID {
		c.currentRoom = nil
	}
	c.Deliver(models.SuccessFrame(models.EventRoomLeft, map[string]string{
		"mediation_id": ev.MediationID.String(),
	}))
}

func (c *Client) handleMuteToggle(ctx context.Context, mediationID, targetUserID uuid.UUID, mute bool) {
	var (
		ok  bool
		err error
	)
	if mute {
		ok, err = c.participants.MuteUser(ctx, targetUserID, mediationID, c.userID)
	} else {
		ok, err = c.participants.UnmuteUser(ctx, targetUserID, mediationID, c.userID)
	}
	if err != nil {
		logger.Error("Error updating mute state: %v", err)
		c.Deliver(models.ErrorFrame("Error processing message"))
		return
	}

	verb, action := "mute", "muted"
	ackEvent, noticeEvent := models.EventUserMuted, models.EventUserMutedNotice
	if !mute {
		verb, action = "unmute", "unmuted"
		ackEvent, noticeEvent = models.EventUserUnmuted, models.EventUserUnmutedNotice
	}
	if !ok {
		c.Deliver(models.ErrorFrame(fmt.Sprintf(
			"Failed to %s user. You may not have permission or user is already %s.", verb, action)))
		return
	}

	c.Deliver(models.SuccessFrame(ackEvent, map[string]any{
		"mediation_id":       mediationID.String(),
		"target_user_id":     targetUserID.String(),
		"moderator_username": c.username,
		"message":            fmt.Sprintf("User has been %s successfully", action),
	}))
	c.registry.Broadcast(RoomForMediation(mediationID), models.InfoFrame(noticeEvent, map[string]any{
		"mediation_id":       mediationID.String(),
		"target_user_id":     targetUserID.String(),
		"moderator_username": c.username,
		"message":            fmt.Sprintf("User %s has been %s by %s", targetUserID, action, c.username),
	}), nil)
}

// leaveCurrentRoom applies leaveRoom semantics on disconnect.
func (c *Client) leaveCurrentRoom() {
	if c.currentRoom != nil {
		c.registry.Leave(*c.currentRoom, c)
		c.currentRoom = nil
	}
}
