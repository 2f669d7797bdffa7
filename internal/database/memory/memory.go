// Package memory provides an in-memory implementation of database.Database,
// used by tests and by local development without a Postgres instance.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediation-app/internal/database"
	"mediation-app/internal/models"
)

type participantKey struct {
	userID      uuid.UUID
	mediationID uuid.UUID
}

type DB struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]*models.User
	mediations   map[uuid.UUID]*models.Mediation
	participants map[participantKey]*models.Participant
	messages     map[uuid.UUID][]*models.Message
	seq          int64
}

func NewDB() *DB {
	return &DB{
		users:        make(map[uuid.UUID]*models.User),
		mediations:   make(map[uuid.UUID]*models.Mediation),
		participants: make(map[participantKey]*models.Participant),
		messages:     make(map[uuid.UUID][]*models.Message),
	}
}

// AddUser seeds a user and returns it.
func (db *DB) AddUser(username string, roles ...models.Role) *models.User {
	db.mu.Lock()
	defer db.mu.Unlock()

	user := &models.User{ID: uuid.New(), Username: username, Roles: roles}
	db.users[user.ID] = user
	return user
}

func (db *DB) Close() error {
	return nil
}

// User Repository Implementation

func (db *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	user, ok := db.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return copyUser(user), nil
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, user := range db.users {
		if user.Username == username {
			return copyUser(user), nil
		}
	}
	return nil, database.ErrNotFound
}

func (db *DB) ListUsers(ctx context.Context) ([]*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	users := make([]*models.User, 0, len(db.users))
	for _, user := range db.users {
		users = append(users, copyUser(user))
	}
	return users, nil
}

func (db *DB) ListParticipantUsers(ctx context.Context, mediationID uuid.UUID) ([]*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var users []*models.User
	for key := range db.participants {
		if key.mediationID != mediationID {
			continue
		}
		if user, ok := db.users[key.userID]; ok {
			users = append(users, copyUser(user))
		}
	}
	return users, nil
}

func (db *DB) ListAvailableModerators(ctx context.Context, mediationID uuid.UUID) ([]*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var users []*models.User
	for _, user := range db.users {
		if !user.CanModerate() {
			continue
		}
		p, ok := db.participants[participantKey{user.ID, mediationID}]
		if ok && !p.CanTalk {
			continue
		}
		users = append(users, copyUser(user))
	}
	return users, nil
}

// Mediation Repository Implementation

func (db *DB) CreateMediation(ctx context.Context, m *models.Mediation) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	stored := *m
	if creator, ok := db.users[m.CreatedBy]; ok {
		stored.CreatorUsername = creator.Username
	}
	db.mediations[m.ID] = &stored
	return nil
}

func (db *DB) GetMediationByID(ctx context.Context, id uuid.UUID) (*models.Mediation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	m, ok := db.mediations[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	stored := *m
	return &stored, nil
}

func (db *DB) CloseMediation(ctx context.Context, id uuid.UUID, reason string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	m, ok := db.mediations[id]
	if !ok {
		return database.ErrNotFound
	}
	m.IsSolved = true
	m.CloseReason = &reason
	return nil
}

func (db *DB) ListMediationsByUser(ctx context.Context, userID uuid.UUID) ([]*models.MediationOverview, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var overviews []*models.MediationOverview
	for key := range db.participants {
		if key.userID != userID {
			continue
		}
		m, ok := db.mediations[key.mediationID]
		if !ok {
			continue
		}
		kind := "public"
		if m.IsPrivate {
			kind = "private"
		}
		overviews = append(overviews, &models.MediationOverview{
			ID:        m.ID,
			Title:     m.Title,
			Kind:      kind,
			CreatedBy: m.CreatorUsername,
		})
	}
	return overviews, nil
}

// Participant Repository Implementation

func (db *DB) GetParticipant(ctx context.Context, userID, mediationID uuid.UUID) (*models.Participant, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, ok := db.participants[participantKey{userID, mediationID}]
	if !ok {
		return nil, database.ErrNotFound
	}
	stored := *p
	return &stored, nil
}

func (db *DB) ListParticipants(ctx context.Context, mediationID uuid.UUID) ([]*models.Participant, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var participants []*models.Participant
	for key, p := range db.participants {
		if key.mediationID != mediationID {
			continue
		}
		stored := *p
		participants = append(participants, &stored)
	}
	return participants, nil
}

func (db *DB) ListModerators(ctx context.Context, mediationID uuid.UUID) ([]*models.Participant, error) {
	participants, err := db.ListParticipants(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	var moderators []*models.Participant
	for _, p := range participants {
		if p.IsModerator {
			moderators = append(moderators, p)
		}
	}
	return moderators, nil
}

func (db *DB) UpsertParticipant(ctx context.Context, p *models.Participant) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored := *p
	if user, ok := db.users[p.UserID]; ok {
		stored.Username = user.Username
	}
	db.participants[participantKey{p.UserID, p.MediationID}] = &stored
	return nil
}

func (db *DB) SaveParticipants(ctx context.Context, participants []*models.Participant) error {
	for _, p := range participants {
		if err := db.UpsertParticipant(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) SetCanTalk(ctx context.Context, userID, mediationID uuid.UUID, canTalk bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.participants[participantKey{userID, mediationID}]
	if !ok {
		return database.ErrNotFound
	}
	p.CanTalk = canTalk
	return nil
}

func (db *DB) MuteParticipant(ctx context.Context, userID, mediationID uuid.UUID) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.participants[participantKey{userID, mediationID}]
	if !ok || !p.CanTalk || p.IsModerator {
		return false, nil
	}
	p.CanTalk = false
	return true, nil
}

func (db *DB) UnmuteParticipant(ctx context.Context, userID, mediationID uuid.UUID) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.participants[participantKey{userID, mediationID}]
	if !ok || p.CanTalk {
		return false, nil
	}
	p.CanTalk = true
	return true, nil
}

// Message Repository Implementation

func (db *DB) SaveMessage(ctx context.Context, mediationID, senderID uuid.UUID, content string) (*models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.seq++
	msg := &models.Message{
		ID:          uuid.New(),
		MediationID: mediationID,
		SenderID:    senderID,
		Content:     content,
		// Monotonic per store so history ordering is stable even when two
		// messages land within the same wall-clock tick.
		SentAt: time.Now().Add(time.Duration(db.seq) * time.Microsecond),
	}
	if sender, ok := db.users[senderID]; ok {
		msg.SenderUsername = sender.Username
	}

	stored := *msg
	db.messages[mediationID] = append(db.messages[mediationID], &stored)
	return msg, nil
}

func (db *DB) ListMessagesByMediation(ctx context.Context, mediationID uuid.UUID) ([]*models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	msgs := db.messages[mediationID]
	out := make([]*models.Message, 0, len(msgs))
	for _, msg := range msgs {
		stored := *msg
		out = append(out, &stored)
	}
	return out, nil
}

func copyUser(u *models.User) *models.User {
	copied := *u
	copied.Roles = append([]models.Role(nil), u.Roles...)
	return &copied
}
