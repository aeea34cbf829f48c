package chat

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatwave/internal/models"
)

// Config holds the hub's tunables.
type Config struct {
	SendBuffer      int // per-connection outbound queue
	MaxMessageBytes int
}

// Hub wires the registry, membership, presence, typing and broadcaster
// together and routes inbound frames to them.
type Hub struct {
	Registry    *Registry
	Membership  *Membership
	Presence    *Presence
	Typing      *Typing
	Broadcaster *Broadcaster

	catalog *RoomCatalog
	cfg     Config
	logger  zerolog.Logger
}

// NewHub creates a hub. recorder may be nil to disable history writes.
func NewHub(cfg Config, catalog *RoomCatalog, recorder *Recorder, logger zerolog.Logger) *Hub {
	logger = logger.With().Str("component", "hub").Logger()

	m := NewMembership(logger)
	return &Hub{
		Registry:    NewRegistry(m, logger),
		Membership:  m,
		Presence:    NewPresence(m),
		Typing:      NewTyping(m),
		Broadcaster: NewBroadcaster(m, NewClock(nil), recorder, cfg.MaxMessageBytes, logger),
		catalog:     catalog,
		cfg:         cfg,
		logger:      logger,
	}
}

// Connect creates and registers a connection for identity.
func (h *Hub) Connect(identity Identity) *Conn {
	c := NewConn(identity, h.cfg.SendBuffer)
	h.Registry.Register(c)
	return c
}

// Disconnect is an implicit leave followed by unregistration.
func (h *Hub) Disconnect(c *Conn) {
	h.Registry.Unregister(c.ID())
}

// Join resolves roomID and moves c into it. The joining connection gets a
// joined acknowledgement only when its room actually changed.
func (h *Hub) Join(ctx context.Context, c *Conn, roomID, key string) (*models.Room, error) {
	room, err := h.catalog.Resolve(ctx, roomID, key)
	if err != nil {
		return nil, err
	}
	ack := encodeFrame(EventJoined, JoinedEvent{
		Room:        room.ID,
		Name:        room.Name,
		Description: room.Description,
	})
	if _, err := h.Membership.Join(c, room.ID, ack); err != nil {
		return nil, err
	}
	return room, nil
}

// Online returns the presence snapshot of roomID.
func (h *Hub) Online(roomID string) []string {
	return h.Presence.Snapshot(roomID)
}

// Dispatch handles one inbound frame from c. Rejections are reported to c
// only and never change membership.
func (h *Hub) Dispatch(ctx context.Context, c *Conn, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
		h.fail(c, "", "", ErrBadFrame)
		return
	}

	switch env.Event {
	case EventJoin:
		var req JoinRequest
		if err := decode(env.Data, &req); err != nil {
			h.fail(c, env.Event, "", err)
			return
		}
		if _, err := h.Join(ctx, c, req.Room, req.Key); err != nil {
			h.fail(c, env.Event, req.Room, err)
		}

	case EventLeave:
		var req RoomRequest
		if err := decode(env.Data, &req); err != nil {
			h.fail(c, env.Event, "", err)
			return
		}
		h.Membership.Leave(c, req.Room)

	case EventSendMessage:
		var req SendRequest
		if err := decode(env.Data, &req); err != nil {
			h.fail(c, env.Event, "", err)
			return
		}
		if _, err := h.Broadcaster.Send(c, req.Room, req.Msg, req.Filename); err != nil {
			h.fail(c, env.Event, req.Room, err)
		}

	case EventTyping:
		var req RoomRequest
		if err := decode(env.Data, &req); err != nil {
			return
		}
		h.Typing.Notify(c, req.Room)

	case EventUserList:
		var req RoomRequest
		if err := decode(env.Data, &req); err != nil {
			h.fail(c, env.Event, "", err)
			return
		}
		if req.Room != "" && !RoomIDPattern.MatchString(req.Room) {
			h.fail(c, env.Event, req.Room, ErrInvalidRoom)
			return
		}
		if err := h.Presence.Reply(c, req.Room); err != nil {
			h.fail(c, env.Event, req.Room, err)
		}

	default:
		h.fail(c, env.Event, "", ErrBadFrame)
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return ErrBadFrame
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ErrBadFrame
	}
	return nil
}

func (h *Hub) fail(c *Conn, event, room string, err error) {
	code := ErrorCode(err)
	msg := err.Error()
	if code == CodeInternal {
		h.logger.Error().Err(err).Str("conn", c.ID()).Str("event", event).Str("room", room).Msg("event failed")
		msg = "internal error"
	} else if !errors.Is(err, ErrBadFrame) {
		h.logger.Debug().Err(err).Str("conn", c.ID()).Str("event", event).Str("room", room).Msg("event rejected")
	}

	c.enqueue(encodeFrame(EventError, ErrorEvent{
		Code:    code,
		Message: msg,
		Event:   event,
		Room:    room,
	}))
}
