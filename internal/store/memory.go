package store

import (
	"context"
	"sync"
	"time"

	"github.com/eldtechnologies/chatwave/internal/models"
)

// MemoryHistory keeps the last N messages of each room in process memory.
type MemoryHistory struct {
	mu      sync.RWMutex
	rooms   map[string][]models.Message
	maxSize int
}

// NewMemoryHistory creates a history that keeps maxSize messages per room.
func NewMemoryHistory(maxSize int) *MemoryHistory {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &MemoryHistory{rooms: make(map[string][]models.Message), maxSize: maxSize}
}

// Store appends msg to its room, dropping the oldest beyond maxSize.
func (m *MemoryHistory) Store(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := append(m.rooms[msg.RoomID], *msg)
	if len(msgs) > m.maxSize {
		msgs = append([]models.Message(nil), msgs[len(msgs)-m.maxSize:]...)
	}
	m.rooms[msg.RoomID] = msgs
	return nil
}

// Recent returns up to limit messages older than before, oldest first.
func (m *MemoryHistory) Recent(_ context.Context, roomID string, limit int, before int64) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.rooms[roomID]
	end := len(msgs)
	if before > 0 {
		for end > 0 && msgs[end-1].Timestamp >= before {
			end--
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	out := make([]models.Message, end-start)
	copy(out, msgs[start:end])
	return out, nil
}

func (m *MemoryHistory) Ping(context.Context) error { return nil }

func (m *MemoryHistory) Close() error { return nil }

// MemoryNonces tracks used nonces when Redis is not configured.
type MemoryNonces struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryNonces creates an empty nonce set.
func NewMemoryNonces() *MemoryNonces {
	return &MemoryNonces{seen: make(map[string]time.Time), now: time.Now}
}

// IsNonceUsed checks if a nonce has been used and not yet expired.
func (n *MemoryNonces) IsNonceUsed(_ context.Context, userID, nonce string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	exp, ok := n.seen[nonceKey(userID, nonce)]
	return ok && n.now().Before(exp)
}

// MarkNonceUsed records a nonce until ttl passes.
func (n *MemoryNonces) MarkNonceUsed(_ context.Context, userID, nonce string, ttl time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	for k, exp := range n.seen {
		if !now.Before(exp) {
			delete(n.seen, k)
		}
	}
	n.seen[nonceKey(userID, nonce)] = now.Add(ttl)
}
