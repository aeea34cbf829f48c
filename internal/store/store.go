package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/eldtechnologies/chatwave/internal/models"
)

// DataStore defines the interface for persistent storage of users and rooms.
// Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, publicKey, name, avatar string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByPublicKey(ctx context.Context, publicKey string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)

	// Room operations
	CreateRoom(ctx context.Context, room *models.Room, keyHash string) (*models.Room, error)
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	GetRoomKeyHash(ctx context.Context, id string) (string, error)
	ListPublicRooms(ctx context.Context, limit, offset int) ([]models.Room, int, error)
	IncrementMessageCount(ctx context.Context, id string) error
	CountPublicRooms(ctx context.Context) (int64, error)
	SumMessageCount(ctx context.Context) (int64, error)
	GetMostRecentActivity(ctx context.Context) (*time.Time, error)
	GetTopActiveRooms(ctx context.Context, limit int) ([]models.Room, error)
}

// HistoryStore keeps delivered messages per room.
// RedisStore, PebbleStore and MemoryHistory implement this interface.
type HistoryStore interface {
	Store(ctx context.Context, msg *models.Message) error
	// Recent returns up to limit messages of roomID older than before
	// (Unix ms, 0 for no bound), oldest first.
	Recent(ctx context.Context, roomID string, limit int, before int64) ([]models.Message, error)
	Ping(ctx context.Context) error
	Close() error
}

// NonceStore records signature nonces to reject replays.
type NonceStore interface {
	IsNonceUsed(ctx context.Context, userID, nonce string) bool
	MarkNonceUsed(ctx context.Context, userID, nonce string, ttl time.Duration)
}

// EnsureRoom creates a public room unless it already exists.
func EnsureRoom(ctx context.Context, ds DataStore, id, name, description string) (*models.Room, error) {
	room, err := ds.GetRoom(ctx, id)
	if err != nil || room != nil {
		return room, err
	}
	return ds.CreateRoom(ctx, &models.Room{ID: id, Name: name, Description: description}, "")
}

// reverse flips newest-first results into oldest-first.
func reverse(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
