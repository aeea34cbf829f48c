package chat

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/eldtechnologies/chatwave/internal/models"
)

func TestDispatchRoutesInboundEvents(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	alice := connect(t, h, "alice")
	bob := connect(t, h, "bob")

	h.Dispatch(ctx, alice, frame(t, EventJoin, map[string]string{"room": "lobby"}))
	h.Dispatch(ctx, bob, frame(t, EventJoin, map[string]string{"room": "lobby"}))
	drain(t, alice)
	drain(t, bob)

	h.Dispatch(ctx, alice, frame(t, EventSendMessage, map[string]string{"room": "lobby", "msg": "hi", "filename": "a.png"}))
	got := only(t, drain(t, bob), EventReceiveMessage)
	require.Len(t, got, 1)
	ev := payload[MessageEvent](t, got[0])
	assert.Equal(t, "hi", ev.Msg)
	assert.Equal(t, "a.png", ev.File)
	drain(t, alice)

	h.Dispatch(ctx, alice, frame(t, EventLeave, map[string]string{"room": "lobby"}))
	assert.Equal(t, "", alice.Room())
	assert.Equal(t, []string{EventUserLeft}, events(drain(t, bob)))
}

func TestDispatchReportsErrorsToOriginatorOnly(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	alice := connect(t, h, "alice")
	bob := connect(t, h, "bob")
	join(t, h, bob, "lobby")
	drain(t, bob)

	tests := []struct {
		name  string
		frame []byte
		code  string
	}{
		{"not json", []byte("{nope"), CodeBadRequest},
		{"unknown event", frame(t, "dance", map[string]string{}), CodeBadRequest},
		{"missing data", []byte(`{"event":"join"}`), CodeBadRequest},
		{"invalid room id", frame(t, EventJoin, map[string]string{"room": "no spaces"}), CodeBadRequest},
		{"send before join", frame(t, EventSendMessage, map[string]string{"room": "lobby", "msg": "hi"}), CodeNotInRoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.Dispatch(ctx, alice, tt.frame)

			got := drain(t, alice)
			require.Equal(t, []string{EventError}, events(got))
			assert.Equal(t, tt.code, payload[ErrorEvent](t, got[0]).Code)
			assert.Empty(t, drain(t, bob))
			assert.Equal(t, "", alice.Room())
		})
	}
}

func TestJoinUnknownRoomWithoutAutoCreate(t *testing.T) {
	rooms := newMemRooms()
	h := NewHub(Config{}, NewRoomCatalog(rooms, false), nil, zerolog.Nop())
	alice := h.Connect(Identity{Name: "alice"})

	_, err := h.Join(context.Background(), alice, "nowhere", "")
	assert.ErrorIs(t, err, ErrUnknownRoom)
	assert.Equal(t, "", alice.Room())

	_, err = rooms.CreateRoom(context.Background(), &models.Room{ID: "somewhere", Name: "Somewhere"}, "")
	require.NoError(t, err)
	room, err := h.Join(context.Background(), alice, "somewhere", "")
	require.NoError(t, err)
	assert.Equal(t, "Somewhere", room.Name)
}

func TestPrivateRoomRequiresKey(t *testing.T) {
	rooms := newMemRooms()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse-battery"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = rooms.CreateRoom(context.Background(), &models.Room{ID: "vault", Name: "vault"}, string(hash))
	require.NoError(t, err)

	h := NewHub(Config{}, NewRoomCatalog(rooms, true), nil, zerolog.Nop())
	alice := h.Connect(Identity{Name: "alice"})

	_, err = h.Join(context.Background(), alice, "vault", "")
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, err = h.Join(context.Background(), alice, "vault", "wrong")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = h.Join(context.Background(), alice, "vault", "correct-horse-battery")
	require.NoError(t, err)
	assert.Equal(t, "vault", alice.Room())
}

func TestCatalogCachesResolvedRooms(t *testing.T) {
	rooms := newMemRooms()
	catalog := NewRoomCatalog(rooms, true)

	for i := 0; i < 3; i++ {
		_, err := catalog.Resolve(context.Background(), "general", "")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, rooms.gets)

	catalog.Forget("general")
	_, err := catalog.Resolve(context.Background(), "general", "")
	require.NoError(t, err)
	assert.Equal(t, 2, rooms.gets)
}

func TestUserListHiddenFromNonMembers(t *testing.T) {
	rooms := newMemRooms()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse-battery"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = rooms.CreateRoom(context.Background(), &models.Room{ID: "vault", Name: "vault"}, string(hash))
	require.NoError(t, err)

	h := NewHub(Config{}, NewRoomCatalog(rooms, true), nil, zerolog.Nop())
	alice := h.Connect(Identity{Name: "alice"})
	mallory := h.Connect(Identity{Name: "mallory", Guest: true})
	_, err = h.Join(context.Background(), alice, "vault", "correct-horse-battery")
	require.NoError(t, err)
	join(t, h, mallory, "lobby")
	drain(t, alice)
	drain(t, mallory)

	for _, room := range []string{"vault", "nowhere"} {
		h.Dispatch(context.Background(), mallory, frame(t, EventUserList, map[string]string{"room": room}))

		got := drain(t, mallory)
		require.Equal(t, []string{EventError}, events(got), room)
		assert.Equal(t, CodeNotInRoom, payload[ErrorEvent](t, got[0]).Code)
		assert.NotContains(t, string(got[0].Data), "online")
	}
	assert.Empty(t, drain(t, alice))

	// Outside any room there is nothing to list
	carol := h.Connect(Identity{Name: "carol"})
	h.Dispatch(context.Background(), carol, frame(t, EventUserList, map[string]string{}))
	got := drain(t, carol)
	require.Equal(t, []string{EventError}, events(got))
	assert.Equal(t, CodeNotInRoom, payload[ErrorEvent](t, got[0]).Code)
}

func TestJoinedAckPrecedesRoomTraffic(t *testing.T) {
	h := newTestHub(t, func(c *Config) { c.SendBuffer = 4096 })
	alice := connect(t, h, "alice")
	join(t, h, alice, "lobby")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_, _ = h.Broadcaster.Send(alice, "lobby", "hi", "")
		}
	}()

	bob := connect(t, h, "bob")
	join(t, h, bob, "lobby")
	<-done

	got := events(drain(t, bob))
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, []string{EventUserJoined, EventJoined}, got[:2])
	for _, e := range got[2:] {
		assert.Equal(t, EventReceiveMessage, e)
	}
}
