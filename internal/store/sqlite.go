package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/eldtechnologies/chatwave/internal/crypto"
	"github.com/eldtechnologies/chatwave/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chatwave.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chatwave.db"
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if dbPath == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		public_key TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		avatar TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_private INTEGER DEFAULT 0,
		key_hash TEXT,
		created_by TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_active_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		message_count INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_is_private ON rooms(is_private);
	CREATE INDEX IF NOT EXISTS idx_rooms_last_active ON rooms(last_active_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, publicKey, name, avatar string) (*models.User, error) {
	id := crypto.NewUUIDv7()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, public_key, name, avatar, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id.String(), publicKey, name, avatar, now, now)
	if err != nil {
		return nil, err
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id.String())
}

// GetUserByPublicKey retrieves a user by public key.
func (s *SQLiteStore) GetUserByPublicKey(ctx context.Context, publicKey string) (*models.User, error) {
	return s.getUser(ctx, `WHERE public_key = ?`, publicKey)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, public_key, name, avatar, created_at, updated_at
		FROM users `+where, arg).Scan(
		&idStr,
		&user.PublicKey,
		&user.Name,
		&user.Avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CountUsers returns the total number of registered users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CreateRoom creates a new room. A non-empty keyHash makes it private.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *models.Room, keyHash string) (*models.Room, error) {
	now := time.Now().UTC()

	var createdByStr *string
	if room.CreatedBy != nil {
		str := room.CreatedBy.String()
		createdByStr = &str
	}

	var keyHashPtr *string
	isPrivateInt := 0
	if keyHash != "" {
		keyHashPtr = &keyHash
		isPrivateInt = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, name, description, is_private, key_hash, created_by, created_at, last_active_at, message_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
	`, room.ID, room.Name, room.Description, isPrivateInt, keyHashPtr, createdByStr, now, now)
	if err != nil {
		return nil, err
	}

	return s.GetRoom(ctx, room.ID)
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, is_private, created_by, created_at, last_active_at, message_count
		FROM rooms WHERE id = ?
	`, id)

	room, err := scanSQLiteRoom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// GetRoomKeyHash retrieves the key hash for a private room.
func (s *SQLiteStore) GetRoomKeyHash(ctx context.Context, id string) (string, error) {
	var keyHash *string
	err := s.db.QueryRowContext(ctx, `
		SELECT key_hash FROM rooms WHERE id = ?
	`, id).Scan(&keyHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
func (s *SQLiteStore) ListPublicRooms(ctx context.Context, limit, offset int) ([]models.Room, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE is_private = 0`).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, is_private, created_by, created_at, last_active_at, message_count
		FROM rooms
		WHERE is_private = 0
		ORDER BY last_active_at DESC, id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	rooms, err := collectSQLiteRooms(rows)
	if err != nil {
		return nil, 0, err
	}
	return rooms, total, nil
}

// IncrementMessageCount increments the message count and updates activity.
func (s *SQLiteStore) IncrementMessageCount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE rooms
		SET message_count = message_count + 1, last_active_at = ?
		WHERE id = ?
	`, time.Now().UTC(), id)
	return err
}

// CountPublicRooms returns the total number of public rooms.
func (s *SQLiteStore) CountPublicRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE is_private = 0`).Scan(&count)
	return count, err
}

// SumMessageCount returns the total message count across all rooms.
func (s *SQLiteStore) SumMessageCount(ctx context.Context) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(message_count), 0) FROM rooms`).Scan(&sum)
	return sum, err
}

// GetMostRecentActivity returns the most recent activity timestamp across all rooms.
func (s *SQLiteStore) GetMostRecentActivity(ctx context.Context) (*time.Time, error) {
	// MAX() drops the column type, so the driver hands back text
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(last_active_at) FROM rooms`).Scan(&raw)
	if err != nil || !raw.Valid {
		return nil, err
	}
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.Parse(layout, raw.String); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", raw.String)
}

// GetTopActiveRooms returns the top N most active public rooms.
func (s *SQLiteStore) GetTopActiveRooms(ctx context.Context, limit int) ([]models.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, is_private, created_by, created_at, last_active_at, message_count
		FROM rooms
		WHERE is_private = 0
		ORDER BY message_count DESC, last_active_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSQLiteRooms(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRoom(row rowScanner) (*models.Room, error) {
	room := &models.Room{}
	var createdByStr *string
	var isPrivateInt int

	err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Description,
		&isPrivateInt,
		&createdByStr,
		&room.CreatedAt,
		&room.LastActiveAt,
		&room.MessageCount,
	)
	if err != nil {
		return nil, err
	}

	room.IsPrivate = isPrivateInt == 1
	if createdByStr != nil {
		if createdBy, err := uuid.Parse(*createdByStr); err == nil {
			room.CreatedBy = &createdBy
		}
	}
	return room, nil
}

func collectSQLiteRooms(rows *sql.Rows) ([]models.Room, error) {
	var rooms []models.Room
	for rows.Next() {
		room, err := scanSQLiteRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}
