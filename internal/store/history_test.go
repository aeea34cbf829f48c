package store

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/chatwave/internal/models"
)

// historyContract checks the behaviour every HistoryStore must share.
func historyContract(t *testing.T, h HistoryStore) {
	t.Helper()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, h.Store(ctx, &models.Message{
			ID:        fmt.Sprintf("m%d", i),
			RoomID:    "lobby",
			User:      "alice",
			Body:      fmt.Sprintf("message %d", i),
			Timestamp: int64(1000 * i),
			Seq:       uint64(i),
		}))
	}
	require.NoError(t, h.Store(ctx, &models.Message{ID: "other", RoomID: "lobby2", Body: "elsewhere", Timestamp: 2500, Seq: 1}))

	t.Run("most recent last", func(t *testing.T) {
		msgs, err := h.Recent(ctx, "lobby", 3, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"m3", "m4", "m5"}, ids(msgs))
	})

	t.Run("before is exclusive", func(t *testing.T) {
		msgs, err := h.Recent(ctx, "lobby", 10, 3000)
		require.NoError(t, err)
		assert.Equal(t, []string{"m1", "m2"}, ids(msgs))
	})

	t.Run("rooms are isolated", func(t *testing.T) {
		msgs, err := h.Recent(ctx, "lobby2", 10, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"other"}, ids(msgs))
	})

	t.Run("unknown room", func(t *testing.T) {
		msgs, err := h.Recent(ctx, "nobody", 10, 0)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("fields survive", func(t *testing.T) {
		msgs, err := h.Recent(ctx, "lobby", 1, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, models.Message{
			ID: "m5", RoomID: "lobby", User: "alice", Body: "message 5", Timestamp: 5000, Seq: 5,
		}, msgs[0])
	})
}

func ids(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestMemoryHistory(t *testing.T) {
	historyContract(t, NewMemoryHistory(100))
}

func TestMemoryHistoryTrims(t *testing.T) {
	h := NewMemoryHistory(2)
	for i := 1; i <= 3; i++ {
		require.NoError(t, h.Store(context.Background(), &models.Message{ID: fmt.Sprint(i), RoomID: "r", Timestamp: int64(i)}))
	}
	msgs, err := h.Recent(context.Background(), "r", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids(msgs))
}

func TestPebbleStore(t *testing.T) {
	s, err := OpenPebbleStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	historyContract(t, s)
}

func TestPebbleStoreReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenPebbleStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Store(context.Background(), &models.Message{ID: "keep", RoomID: "r", Timestamp: 1, Seq: 1}))
	require.NoError(t, s.Close())

	_, err = s.Recent(context.Background(), "r", 1, 0)
	assert.ErrorIs(t, err, errPebbleClosed)

	s, err = OpenPebbleStore(dir)
	require.NoError(t, err)
	defer s.Close()
	msgs, err := s.Recent(context.Background(), "r", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, ids(msgs))
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	s, err := NewRedisStore(context.Background(), url)
	require.NoError(t, err)
	defer s.Close()
	for _, room := range []string{"lobby", "lobby2", "nobody"} {
		s.client.Del(context.Background(), roomMessagesKey(room))
	}

	historyContract(t, s)
}
