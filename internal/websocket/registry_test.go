package websocket

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"mediation-app/internal/models"
)

type fakeSession struct {
	mu     sync.Mutex
	id     uuid.UUID
	name   string
	fail   bool
	frames []models.OutboundFrame
}

func newFakeSession(name string) *fakeSession {
	return &fakeSession{id: uuid.New(), name: name}
}

func (s *fakeSession) UserID() uuid.UUID {
	return s.id
}

func (s *fakeSession) Username() string {
	return s.name
}

func (s *fakeSession) Deliver(frame models.OutboundFrame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return false
	}
	s.frames = append(s.frames, frame)
	return true
}

func (s *fakeSession) delivered() []models.OutboundFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OutboundFrame(nil), s.frames...)
}

func TestBroadcastExcludesSender(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := RoomForMediation(uuid.New())

	a := newFakeSession("a")
	b := newFakeSession("b")
	registry.Join(roomID, a)
	registry.Join(roomID, b)

	frame := models.SuccessFrame(models.EventNewMessage, map[string]string{"content": "hi"})
	registry.Broadcast(roomID, frame, a)

	req.Empty(a.delivered())
	req.Equal([]models.OutboundFrame{frame}, b.delivered())
}

func TestBroadcastSkipsFailedDelivery(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := RoomForMediation(uuid.New())

	broken := newFakeSession("broken")
	broken.fail = true
	healthy := newFakeSession("healthy")
	registry.Join(roomID, broken)
	registry.Join(roomID, healthy)

	registry.Broadcast(roomID, models.InfoFrame(models.EventMediationClosed, nil), nil)

	// One dead connection never blocks the rest of the room
	req.Len(healthy.delivered(), 1)
	req.Equal(2, registry.Count(roomID))
}

func TestBroadcastToUnknownRoomIsNoop(t *testing.T) {
	registry := NewRegistry()
	registry.Broadcast(RoomForMediation(uuid.New()), models.ErrorFrame("nobody home"), nil)
}

func TestLeaveRemovesEmptyRoom(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := RoomForMediation(uuid.New())

	a := newFakeSession("a")
	b := newFakeSession("b")
	registry.Join(roomID, a)
	registry.Join(roomID, b)
	req.Equal(2, registry.Count(roomID))

	registry.Leave(roomID, a)
	req.Equal(1, registry.Count(roomID))

	registry.Leave(roomID, b)
	req.Equal(0, registry.Count(roomID))
	req.Empty(registry.rooms)

	// Leaving again is idempotent
	registry.Leave(roomID, b)
}

func TestJoinLandsInIndexedRoomAfterDrop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := RoomForMediation(uuid.New())

	a := newFakeSession("a")
	registry.Join(roomID, a)

	// Hold the room pointer the way an in-flight Join would, then let a
	// Leave empty the room and drop it from the index.
	registry.mu.Lock()
	stale := registry.rooms[roomID]
	registry.mu.Unlock()
	registry.Leave(roomID, a)

	stale.mu.Lock()
	req.True(stale.closed)
	stale.mu.Unlock()

	// The next join must create a fresh indexed room, not revive the stale one
	b := newFakeSession("b")
	registry.Join(roomID, b)
	req.Equal(1, registry.Count(roomID))

	registry.Broadcast(roomID, models.InfoFrame(models.EventConnected, nil), nil)
	req.Len(b.delivered(), 1)

	stale.mu.Lock()
	req.Empty(stale.sessions)
	stale.mu.Unlock()
}

func TestConcurrentLeaveNeverOrphansJoiner(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	for i := 0; i < 2000; i++ {
		roomID := RoomForMediation(uuid.New())
		a := newFakeSession("a")
		b := newFakeSession("b")
		registry.Join(roomID, a)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			registry.Leave(roomID, a)
		}()
		go func() {
			defer wg.Done()
			registry.Join(roomID, b)
		}()
		wg.Wait()

		// b must be reachable through the index whichever side won
		req.Equal(1, registry.Count(roomID))
		registry.Leave(roomID, b)
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := RoomForMediation(uuid.New())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := newFakeSession("s")
			registry.Join(roomID, s)
			registry.Broadcast(roomID, models.InfoFrame(models.EventConnected, nil), nil)
			registry.Leave(roomID, s)
		}()
	}
	wg.Wait()

	req.Equal(0, registry.Count(roomID))
}
