package websocket

import (
	"sync"

	"github.com/google/uuid"

	"mediation-app/internal/models"
	"mediation-app/pkg/logger"
)

// RoomID identifies one mediation's live chat room.
type RoomID uuid.UUID

func RoomForMediation(mediationID uuid.UUID) RoomID {
	return RoomID(mediationID)
}

func (r RoomID) String() string {
	return uuid.UUID(r).String()
}

// Session is the delivery end of a live connection. Deliver must not block;
// it reports false when the session is closed or saturated, and a false result
// never aborts a fan-out.
type Session interface {
	UserID() uuid.UUID
	Username() string
	Deliver(frame models.OutboundFrame) bool
}

type room struct {
	mu sync.RWMutex
	// closed is set under mu when Leave empties the room and drops it from the
	// index; a Join that finds it set must go back to the index.
	closed   bool
	sessions map[Session]struct{}
}

// Registry maps rooms to their live sessions. The room index lock is held only
// for map bookkeeping; deliveries run under the per-room lock at most for the
// snapshot, never for the sends themselves.
type Registry struct {
	mu    sync.RWMutex
	rooms map[RoomID]*room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[RoomID]*room)}
}

func (r *Registry) Join(roomID RoomID, s Session) {
	for {
		r.mu.Lock()
		rm, ok := r.rooms[roomID]
		if !ok {
			rm = &room{sessions: make(map[Session]struct{})}
			r.rooms[roomID] = rm
		}
		r.mu.Unlock()

		rm.mu.Lock()
		if rm.closed {
			// A concurrent Leave emptied this room and dropped it from the
			// index between our two critical sections. Start over.
			rm.mu.Unlock()
			continue
		}
		rm.sessions[s] = struct{}{}
		rm.mu.Unlock()
		break
	}
	logger.Debug("User %s joined room %s", s.Username(), roomID)
}

// Leave removes the session from the room; idempotent when already absent. An
// emptied room is marked closed and dropped from the index, so a concurrent
// Join can never land a session in a room the index no longer reaches.
func (r *Registry) Leave(roomID RoomID, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return
	}

	rm.mu.Lock()
	delete(rm.sessions, s)
	if len(rm.sessions) == 0 {
		rm.closed = true
		delete(r.rooms, roomID)
	}
	rm.mu.Unlock()
	logger.Debug("User %s left room %s", s.Username(), roomID)
}

// Broadcast delivers the frame to every session in the room except exclude.
// A session that refuses delivery is skipped; one bad connection never blocks
// the rest of the room.
func (r *Registry) Broadcast(roomID RoomID, frame models.OutboundFrame, exclude Session) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.RLock()
	targets := make([]Session, 0, len(rm.sessions))
	for s := range rm.sessions {
		if s != exclude {
			targets = append(targets, s)
		}
	}
	rm.mu.RUnlock()

	for _, s := range targets {
		if !s.Deliver(frame) {
			logger.Debug("Skipped delivery to %s in room %s", s.Username(), roomID)
		}
	}
}

// NotifyRoom implements services.RoomNotifier for administrative broadcasts
// such as mediation closure.
func (r *Registry) NotifyRoom(mediationID uuid.UUID, frame models.OutboundFrame) {
	r.Broadcast(RoomForMediation(mediationID), frame, nil)
}

// Count returns the number of live sessions in a room.
func (r *Registry) Count(roomID RoomID) int {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.sessions)
}
