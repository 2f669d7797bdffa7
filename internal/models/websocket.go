package models

// Wire envelopes for the mediation room protocol. Inbound frames carry an
// event name plus a payload object; outbound frames add a status discriminator.

type FrameStatus string

const (
	StatusSuccess FrameStatus = "success"
	StatusError   FrameStatus = "error"
	StatusInfo    FrameStatus = "info"
)

// Outbound event names.
const (
	EventConnected         = "connected"
	EventRoomJoined        = "roomJoined"
	EventRoomLeft          = "roomLeft"
	EventMessageHistory    = "messageHistory"
	EventMessageSent       = "messageSent"
	EventNewMessage        = "newMessage"
	EventUserMuted         = "userMuted"
	EventUserUnmuted       = "userUnmuted"
	EventUserMutedNotice   = "userMutedNotification"
	EventUserUnmutedNotice = "userUnmutedNotification"
	EventMediationClosed   = "mediationClosed"
	EventError             = "error"
)

type OutboundFrame struct {
	Event  string      `json:"event"`
	Status FrameStatus `json:"status"`
	Data   any         `json:"data,omitempty"`
}

func SuccessFrame(event string, data any) OutboundFrame {
	return OutboundFrame{Event: event, Status: StatusSuccess, Data: data}
}

func InfoFrame(event string, data any) OutboundFrame {
	return OutboundFrame{Event: event, Status: StatusInfo, Data: data}
}

func ErrorFrame(message string) OutboundFrame {
	return OutboundFrame{Event: EventError, Status: StatusError, Data: map[string]string{"message": message}}
}
