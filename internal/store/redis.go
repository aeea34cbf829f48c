package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eldtechnologies/chatwave/internal/crypto"
	"github.com/eldtechnologies/chatwave/internal/metrics"
	"github.com/eldtechnologies/chatwave/internal/models"
)

const defaultMessageTTL = 7 * 24 * time.Hour

// RedisStore keeps room history in sorted sets scored by timestamp, and
// backs nonce tracking and rate limiting.
type RedisStore struct {
	client     *redis.Client
	messageTTL time.Duration
	maxPerRoom int64
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return NewRedisStoreFromClient(ctx, redis.NewClient(opts))
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(ctx context.Context, client *redis.Client) (*RedisStore, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisStore{client: client, messageTTL: defaultMessageTTL, maxPerRoom: 1000}, nil
}

// Client returns the underlying client, or nil on a nil store.
func (s *RedisStore) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// roomMessagesKey returns the key for a room's message sorted set.
func roomMessagesKey(roomID string) string {
	return fmt.Sprintf("room:%s:messages", roomID)
}

// Store adds a message to its room's history and trims the oldest entries.
func (s *RedisStore) Store(ctx context.Context, msg *models.Message) error {
	start := time.Now()
	defer func() { metrics.RedisLatency.Observe(time.Since(start).Seconds()) }()

	if msg.ID == "" {
		msg.ID = crypto.NewULID()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := roomMessagesKey(msg.RoomID)

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(msg.Timestamp),
		Member: string(data),
	})
	// keep the newest maxPerRoom members
	pipe.ZRemRangeByRank(ctx, key, 0, -s.maxPerRoom-1)
	pipe.Expire(ctx, key, s.messageTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent retrieves up to limit messages older than before, oldest first.
func (s *RedisStore) Recent(ctx context.Context, roomID string, limit int, before int64) ([]models.Message, error) {
	start := time.Now()
	defer func() { metrics.RedisLatency.Observe(time.Since(start).Seconds()) }()

	maxScore := "+inf"
	if before > 0 {
		maxScore = fmt.Sprintf("(%d", before) // exclusive
	}

	results, err := s.client.ZRevRangeByScore(ctx, roomMessagesKey(roomID), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   maxScore,
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(results))
	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	reverse(messages)
	return messages, nil
}

// nonceKey returns the key for nonce tracking.
func nonceKey(userID, nonce string) string {
	return fmt.Sprintf("nonce:%s:%s", userID, nonce)
}

// IsNonceUsed checks if a nonce has been used.
func (s *RedisStore) IsNonceUsed(ctx context.Context, userID, nonce string) bool {
	exists, _ := s.client.Exists(ctx, nonceKey(userID, nonce)).Result()
	return exists > 0
}

// MarkNonceUsed marks a nonce as used with a TTL.
func (s *RedisStore) MarkNonceUsed(ctx context.Context, userID, nonce string, ttl time.Duration) {
	s.client.Set(ctx, nonceKey(userID, nonce), "1", ttl)
}
