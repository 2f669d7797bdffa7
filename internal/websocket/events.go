package websocket

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// Inbound events are decoded once at the connection boundary into one of the
// typed variants below; the dispatch switch in client.go covers the closed set.

var errUnknownEvent = errors.New("unknown event type")

type Event interface {
	isEvent()
}

type JoinRoomEvent struct {
	MediationID uuid.UUID `json:"mediation_id"`
}

type SendMessageEvent struct {
	MediationID uuid.UUID `json:"mediation_id"`
	Content     string    `json:"content"`
}

type LeaveRoomEvent struct {
	MediationID uuid.UUID `json:"mediation_id"`
}

type MuteUserEvent struct {
	MediationID  uuid.UUID `json:"mediation_id"`
	TargetUserID uuid.UUID `json:"target_user_id"`
}

type UnmuteUserEvent struct {
	MediationID  uuid.UUID `json:"mediation_id"`
	TargetUserID uuid.UUID `json:"target_user_id"`
}

func (JoinRoomEvent) isEvent()    {}
func (SendMessageEvent) isEvent() {}
func (LeaveRoomEvent) isEvent()   {}
func (MuteUserEvent) isEvent()    {}
func (UnmuteUserEvent) isEvent()  {}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodeEvent parses an inbound text frame into its typed event. It returns
// errUnknownEvent for names outside the protocol and a plain error for
// malformed payloads or unparseable identifiers.
func DecodeEvent(payload []byte) (Event, error) {
	var frame inboundFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return nil, err
	}

	var event Event
	switch frame.Event {
	case "joinRoom":
		event = &JoinRoomEvent{}
	case "sendMessage":
		event = &SendMessageEvent{}
	case "leaveRoom":
		event = &LeaveRoomEvent{}
	case "muteUser":
		event = &MuteUserEvent{}
	case "unmuteUser":
		event = &UnmuteUserEvent{}
	default:
		return nil, errUnknownEvent
	}

	if err := json.Unmarshal(frame.Data, event); err != nil {
		return nil, err
	}
	return event, nil
}
