package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/chatwave/internal/models"
)

type memRooms struct {
	mu     sync.Mutex
	rooms  map[string]*models.Room
	hashes map[string]string
	gets   int
}

func newMemRooms() *memRooms {
	return &memRooms{rooms: map[string]*models.Room{}, hashes: map[string]string{}}
}

func (s *memRooms) GetRoom(_ context.Context, id string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	r, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *memRooms) GetRoomKeyHash(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashes[id], nil
}

func (s *memRooms) CreateRoom(_ context.Context, room *models.Room, keyHash string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *room
	cp.IsPrivate = keyHash != ""
	cp.CreatedAt = time.Now()
	s.rooms[room.ID] = &cp
	if keyHash != "" {
		s.hashes[room.ID] = keyHash
	}
	out := cp
	return &out, nil
}

func newTestHub(t *testing.T, opts ...func(*Config)) *Hub {
	t.Helper()
	cfg := Config{SendBuffer: 64, MaxMessageBytes: 64}
	for _, o := range opts {
		o(&cfg)
	}
	return NewHub(cfg, NewRoomCatalog(newMemRooms(), true), nil, zerolog.Nop())
}

func connect(t *testing.T, h *Hub, name string) *Conn {
	t.Helper()
	return h.Connect(Identity{UserID: "u-" + name, Name: name})
}

func join(t *testing.T, h *Hub, c *Conn, room string) {
	t.Helper()
	_, err := h.Join(context.Background(), c, room, "")
	require.NoError(t, err)
}

// drain returns every frame currently queued for c.
func drain(t *testing.T, c *Conn) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case b := <-c.Outbound():
			var env Envelope
			require.NoError(t, json.Unmarshal(b, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func events(envs []Envelope) []string {
	names := make([]string, len(envs))
	for i, e := range envs {
		names[i] = e.Event
	}
	return names
}

func only(t *testing.T, envs []Envelope, event string) []Envelope {
	t.Helper()
	var out []Envelope
	for _, e := range envs {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func payload[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	return b
}
