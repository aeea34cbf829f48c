package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldtechnologies/chatwave/internal/crypto"
	"github.com/eldtechnologies/chatwave/internal/metrics"
	"github.com/eldtechnologies/chatwave/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	public_key TEXT UNIQUE NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	avatar TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rooms (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	is_private BOOLEAN NOT NULL DEFAULT FALSE,
	key_hash TEXT,
	created_by UUID REFERENCES users(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_active_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	message_count BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_rooms_is_private ON rooms(is_private);
CREATE INDEX IF NOT EXISTS idx_rooms_last_active ON rooms(last_active_at);
`

const roomColumns = `id, name, description, is_private, created_by, created_at, last_active_at, message_count`

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates tables if they don't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func observe(start time.Time) {
	metrics.DatabaseLatency.Observe(time.Since(start).Seconds())
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, publicKey, name, avatar string) (*models.User, error) {
	defer observe(time.Now())

	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, public_key, name, avatar)
		VALUES ($1, $2, $3, $4)
		RETURNING id, public_key, name, avatar, created_at, updated_at
	`, crypto.NewUUIDv7(), publicKey, name, avatar).Scan(
		&user.ID,
		&user.PublicKey,
		&user.Name,
		&user.Avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

// GetUserByPublicKey retrieves a user by public key.
func (s *PostgresStore) GetUserByPublicKey(ctx context.Context, publicKey string) (*models.User, error) {
	return s.getUser(ctx, `WHERE public_key = $1`, publicKey)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	defer observe(time.Now())

	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, public_key, name, avatar, created_at, updated_at
		FROM users `+where, arg).Scan(
		&user.ID,
		&user.PublicKey,
		&user.Name,
		&user.Avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CountUsers returns the total number of registered users.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CreateRoom creates a new room. A non-empty keyHash makes it private.
func (s *PostgresStore) CreateRoom(ctx context.Context, room *models.Room, keyHash string) (*models.Room, error) {
	defer observe(time.Now())

	var keyHashPtr *string
	if keyHash != "" {
		keyHashPtr = &keyHash
	}

	rows, err := s.pool.Query(ctx, `
		INSERT INTO rooms (id, name, description, is_private, key_hash, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+roomColumns,
		room.ID, room.Name, room.Description, keyHash != "", keyHashPtr, room.CreatedBy)
	if err != nil {
		return nil, err
	}
	return pgx.CollectExactlyOneRow(rows, scanPgRoom)
}

// GetRoom retrieves a room by ID.
func (s *PostgresStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	defer observe(time.Now())

	rows, err := s.pool.Query(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	room, err := pgx.CollectExactlyOneRow(rows, scanPgRoom)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// GetRoomKeyHash retrieves the key hash for a private room.
func (s *PostgresStore) GetRoomKeyHash(ctx context.Context, id string) (string, error) {
	var keyHash *string
	err := s.pool.QueryRow(ctx, `
		SELECT key_hash FROM rooms WHERE id = $1
	`, id).Scan(&keyHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	if keyHash == nil {
		return "", nil
	}
	return *keyHash, nil
}

// ListPublicRooms retrieves public rooms with pagination.
func (s *PostgresStore) ListPublicRooms(ctx context.Context, limit, offset int) ([]models.Room, int, error) {
	defer observe(time.Now())

	var total int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rooms WHERE is_private = FALSE`).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE is_private = FALSE
		ORDER BY last_active_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	rooms, err := collectPgRooms(rows)
	if err != nil {
		return nil, 0, err
	}
	return rooms, total, nil
}

// IncrementMessageCount increments the message count and updates activity.
func (s *PostgresStore) IncrementMessageCount(ctx context.Context, id string) error {
	defer observe(time.Now())

	_, err := s.pool.Exec(ctx, `
		UPDATE rooms
		SET message_count = message_count + 1, last_active_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

// CountPublicRooms returns the total number of public rooms.
func (s *PostgresStore) CountPublicRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rooms WHERE is_private = FALSE`).Scan(&count)
	return count, err
}

// SumMessageCount returns the total message count across all rooms.
func (s *PostgresStore) SumMessageCount(ctx context.Context) (int64, error) {
	var sum int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(message_count), 0) FROM rooms`).Scan(&sum)
	return sum, err
}

// GetMostRecentActivity returns the most recent activity timestamp across all rooms.
func (s *PostgresStore) GetMostRecentActivity(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MAX(last_active_at) FROM rooms`).Scan(&t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTopActiveRooms returns the top N most active public rooms.
func (s *PostgresStore) GetTopActiveRooms(ctx context.Context, limit int) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE is_private = FALSE
		ORDER BY message_count DESC, last_active_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collectPgRooms(rows)
}

func scanPgRoom(row pgx.CollectableRow) (*models.Room, error) {
	room := &models.Room{}
	err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Description,
		&room.IsPrivate,
		&room.CreatedBy,
		&room.CreatedAt,
		&room.LastActiveAt,
		&room.MessageCount,
	)
	return room, err
}

func collectPgRooms(rows pgx.Rows) ([]models.Room, error) {
	ptrs, err := pgx.CollectRows(rows, scanPgRoom)
	if err != nil {
		return nil, err
	}
	rooms := make([]models.Room, len(ptrs))
	for i, r := range ptrs {
		rooms[i] = *r
	}
	return rooms, nil
}
