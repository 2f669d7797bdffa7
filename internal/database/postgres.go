package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediation-app/internal/models"
	"mediation-app/pkg/logger"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// User Repository Implementation

const userWithRolesQuery = `
	SELECT u.id, u.username,
	       COALESCE(array_agg(r.name) FILTER (WHERE r.name IS NOT NULL), '{}')
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id`

func (db *PostgresDB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := userWithRolesQuery + `
	WHERE u.id = $1
	GROUP BY u.id, u.username`

	return db.scanUser(db.pool.QueryRow(ctx, query, id))
}

func (db *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := userWithRolesQuery + `
	WHERE u.username = $1
	GROUP BY u.id, u.username`

	return db.scanUser(db.pool.QueryRow(ctx, query, username))
}

func (db *PostgresDB) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := userWithRolesQuery + `
	GROUP BY u.id, u.username
	ORDER BY u.username`

	return db.queryUsers(ctx, query)
}

func (db *PostgresDB) ListParticipantUsers(ctx context.Context, mediationID uuid.UUID) ([]*models.User, error) {
	query := userWithRolesQuery + `
	JOIN mediation_participants mp ON mp.user_id = u.id
	WHERE mp.mediation_id = $1
	GROUP BY u.id, u.username
	ORDER BY u.username`

	return db.queryUsers(ctx, query, mediationID)
}

func (db *PostgresDB) ListAvailableModerators(ctx context.Context, mediationID uuid.UUID) ([]*models.User, error) {
	// Moderation-eligible users that are not muted participants of this
	// mediation: the candidate pool for private mediations.
	query := userWithRolesQuery + `
	WHERE u.id IN (
		SELECT ur2.user_id FROM user_roles ur2
		JOIN roles r2 ON r2.id = ur2.role_id
		WHERE r2.name = ANY($2)
	)
	AND u.id NOT IN (
		SELECT mp.user_id FROM mediation_participants mp
		WHERE mp.mediation_id = $1 AND mp.can_talk = false
	)
	GROUP BY u.id, u.username
	ORDER BY u.username`

	moderationRoles := []string{
		string(models.RoleSafetyCommittee),
		string(models.RoleLeader),
		string(models.RoleModerator),
	}
	return db.queryUsers(ctx, query, mediationID, moderationRoles)
}

func (db *PostgresDB) scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	var roleNames []string
	if err := row.Scan(&user.ID, &user.Username, &roleNames); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.Roles = rolesFromNames(roleNames)
	return user, nil
}

func (db *PostgresDB) queryUsers(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		var roleNames []string
		if err := rows.Scan(&user.ID, &user.Username, &roleNames); err != nil {
			return nil, err
		}
		user.Roles = rolesFromNames(roleNames)
		users = append(users, user)
	}

	return users, rows.Err()
}

func rolesFromNames(names []string) []models.Role {
	roles := make([]models.Role, 0, len(names))
	for _, name := range names {
		roles = append(roles, models.Role(name))
	}
	return roles
}

// Mediation Repository Implementation

func (db *PostgresDB) CreateMediation(ctx context.Context, m *models.Mediation) error {
	query := `
		INSERT INTO mediations (id, title, is_private, is_solved, created_by, created_at)
		VALUES ($1, $2, $3, false, $4, NOW())
		RETURNING created_at`

	err := db.pool.QueryRow(ctx, query, m.ID, m.Title, m.IsPrivate, m.CreatedBy).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create mediation: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetMediationByID(ctx context.Context, id uuid.UUID) (*models.Mediation, error) {
	query := `
		SELECT m.id, m.title, m.is_private, m.is_solved, m.close_reason, m.created_by, u.username, m.created_at
		FROM mediations m
		JOIN users u ON u.id = m.created_by
		WHERE m.id = $1`

	m := &models.Mediation{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Title, &m.IsPrivate, &m.IsSolved, &m.CloseReason, &m.CreatedBy, &m.CreatorUsername, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return m, nil
}

func (db *PostgresDB) CloseMediation(ctx context.Context, id uuid.UUID, reason string) error {
	query := `UPDATE mediations SET is_solved = true, close_reason = $2 WHERE id = $1`

	tag, err := db.pool.Exec(ctx, query, id, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDB) ListMediationsByUser(ctx context.Context, userID uuid.UUID) ([]*models.MediationOverview, error) {
	query := `
		SELECT m.id, m.title, m.is_private, u.username
		FROM mediations m
		JOIN mediation_participants mp ON mp.mediation_id = m.id
		JOIN users u ON u.id = m.created_by
		WHERE mp.user_id = $1
		ORDER BY m.created_at DESC`

	rows, err := db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overviews []*models.MediationOverview
	for rows.Next() {
		overview := &models.MediationOverview{}
		var isPrivate bool
		if err := rows.Scan(&overview.ID, &overview.Title, &isPrivate, &overview.CreatedBy); err != nil {
			return nil, err
		}
		overview.Kind = "public"
		if isPrivate {
			overview.Kind = "private"
		}
		overviews = append(overviews, overview)
	}

	return overviews, rows.Err()
}

// Participant Repository Implementation

func (db *PostgresDB) GetParticipant(ctx context.Context, userID, mediationID uuid.UUID) (*models.Participant, error) {
	query := `
		SELECT mp.user_id, mp.mediation_id, mp.can_talk, mp.is_moderator, u.username
		FROM mediation_participants mp
		JOIN users u ON u.id = mp.user_id
		WHERE mp.user_id = $1 AND mp.mediation_id = $2`

	p := &models.Participant{}
	err := db.pool.QueryRow(ctx, query, userID, mediationID).Scan(
		&p.UserID, &p.MediationID, &p.CanTalk, &p.IsModerator, &p.Username,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return p, nil
}

func (db *PostgresDB) ListParticipants(ctx context.Context, mediationID uuid.UUID) ([]*models.Participant, error) {
	query := `
		SELECT mp.user_id, mp.mediation_id, mp.can_talk, mp.is_moderator, u.username
		FROM mediation_participants mp
		JOIN users u ON u.id = mp.user_id
		WHERE mp.mediation_id = $1
		ORDER BY u.username`

	return db.queryParticipants(ctx, query, mediationID)
}

func (db *PostgresDB) ListModerators(ctx context.Context, mediationID uuid.UUID) ([]*models.Participant, error) {
	query := `
		SELECT mp.user_id, mp.mediation_id, mp.can_talk, mp.is_moderator, u.username
		FROM mediation_participants mp
		JOIN users u ON u.id = mp.user_id
		WHERE mp.mediation_id = $1 AND mp.is_moderator = true
		ORDER BY u.username`

	return db.queryParticipants(ctx, query, mediationID)
}

func (db *PostgresDB) queryParticipants(ctx context.Context, query string, args ...any) ([]*models.Participant, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p := &models.Participant{}
		if err := rows.Scan(&p.UserID, &p.MediationID, &p.CanTalk, &p.IsModerator, &p.Username); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

const upsertParticipantQuery = `
	INSERT INTO mediation_participants (user_id, mediation_id, can_talk, is_moderator)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, mediation_id)
	DO UPDATE SET can_talk = EXCLUDED.can_talk, is_moderator = EXCLUDED.is_moderator`

func (db *PostgresDB) UpsertParticipant(ctx context.Context, p *models.Participant) error {
	_, err := db.pool.Exec(ctx, upsertParticipantQuery, p.UserID, p.MediationID, p.CanTalk, p.IsModerator)
	return err
}

func (db *PostgresDB) SaveParticipants(ctx context.Context, participants []*models.Participant) error {
	batch := &pgx.Batch{}
	for _, p := range participants {
		batch.Queue(upsertParticipantQuery, p.UserID, p.MediationID, p.CanTalk, p.IsModerator)
	}

	results := db.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range participants {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save participants: %w", err)
		}
	}
	return nil
}

func (db *PostgresDB) SetCanTalk(ctx context.Context, userID, mediationID uuid.UUID, canTalk bool) error {
	query := `UPDATE mediation_participants SET can_talk = $3 WHERE user_id = $1 AND mediation_id = $2`

	tag, err := db.pool.Exec(ctx, query, userID, mediationID, canTalk)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MuteParticipant clears can_talk in a single conditional statement, so the
// precondition check and the write cannot straddle a concurrent promotion.
func (db *PostgresDB) MuteParticipant(ctx context.Context, userID, mediationID uuid.UUID) (bool, error) {
	query := `
		UPDATE mediation_participants SET can_talk = false
		WHERE user_id = $1 AND mediation_id = $2 AND can_talk AND NOT is_moderator`

	tag, err := db.pool.Exec(ctx, query, userID, mediationID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UnmuteParticipant restores can_talk; it only touches a row that is muted.
func (db *PostgresDB) UnmuteParticipant(ctx context.Context, userID, mediationID uuid.UUID) (bool, error) {
	query := `
		UPDATE mediation_participants SET can_talk = true
		WHERE user_id = $1 AND mediation_id = $2 AND NOT can_talk`

	tag, err := db.pool.Exec(ctx, query, userID, mediationID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Message Repository Implementation

func (db *PostgresDB) SaveMessage(ctx context.Context, mediationID, senderID uuid.UUID, content string) (*models.Message, error) {
	query := `
		INSERT INTO messages (id, mediation_id, sender_id, content, sent_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING sent_at`

	msg := &models.Message{
		ID:          uuid.New(),
		MediationID: mediationID,
		SenderID:    senderID,
		Content:     content,
	}
	err := db.pool.QueryRow(ctx, query, msg.ID, mediationID, senderID, content).Scan(&msg.SentAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	return msg, nil
}

func (db *PostgresDB) ListMessagesByMediation(ctx context.Context, mediationID uuid.UUID) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.mediation_id, m.sender_id, u.username, m.content, m.sent_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.mediation_id = $1
		ORDER BY m.sent_at ASC`

	rows, err := db.pool.Query(ctx, query, mediationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.MediationID, &msg.SenderID, &msg.SenderUsername, &msg.Content, &msg.SentAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
