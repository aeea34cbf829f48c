package chat

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatwave/internal/crypto"
	"github.com/eldtechnologies/chatwave/internal/metrics"
	"github.com/eldtechnologies/chatwave/internal/models"
)

// DefaultMaxMessageBytes bounds the text of a single message.
const DefaultMaxMessageBytes = 4096

// Broadcaster validates, stamps and fans out messages to a room.
type Broadcaster struct {
	membership *Membership
	clock      *Clock
	recorder   *Recorder
	maxBytes   int
	logger     zerolog.Logger
}

// NewBroadcaster creates a broadcaster. recorder may be nil.
func NewBroadcaster(m *Membership, clock *Clock, recorder *Recorder, maxBytes int, logger zerolog.Logger) *Broadcaster {
	if clock == nil {
		clock = NewClock(nil)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMessageBytes
	}
	return &Broadcaster{
		membership: m,
		clock:      clock,
		recorder:   recorder,
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

// Send delivers a message from c to every member of its current room,
// including c. roomID may be empty; otherwise it must name the current room.
//
// Stamping and fan-out happen under the room lock, so timestamps and
// sequence numbers follow delivery order. The history write happens after
// delivery and never affects it.
func (b *Broadcaster) Send(c *Conn, roomID, body, file string) (*models.Message, error) {
	cur := c.Room()
	if cur == "" || (roomID != "" && roomID != cur) {
		return nil, b.reject(ErrNotInRoom)
	}

	body = strings.TrimSpace(body)
	file = strings.TrimSpace(file)
	if body == "" && file == "" {
		return nil, b.reject(ErrEmptyMessage)
	}
	if len(body) > b.maxBytes {
		return nil, b.reject(ErrMessageTooLong)
	}
	if !validFileRef(file) {
		return nil, b.reject(ErrInvalidFile)
	}

	r := b.membership.lookup(cur, false)
	if r == nil {
		return nil, b.reject(ErrNotInRoom)
	}

	id := c.Identity()
	msg := &models.Message{
		ID:     crypto.NewULID(),
		RoomID: cur,
		UserID: id.UserID,
		User:   id.Name,
		Avatar: id.Avatar,
		Body:   body,
		File:   file,
	}

	r.mu.Lock()
	if _, ok := r.members[c.id]; !ok {
		r.mu.Unlock()
		return nil, b.reject(ErrNotInRoom)
	}
	msg.Timestamp = b.clock.Stamp()
	r.seq++
	msg.Seq = r.seq
	delivered := r.broadcast(encodeFrame(EventReceiveMessage, NewMessageEvent(msg)), nil)
	r.mu.Unlock()

	metrics.MessagesSent.Inc()
	b.logger.Debug().
		Str("conn", c.id).
		Str("room", cur).
		Str("message", msg.ID).
		Uint64("seq", msg.Seq).
		Int("delivered", delivered).
		Msg("message broadcast")

	if b.recorder != nil {
		b.recorder.Record(msg)
	}
	return msg, nil
}

func (b *Broadcaster) reject(err error) error {
	metrics.MessagesRejected.WithLabelValues(ErrorCode(err)).Inc()
	return err
}

// validFileRef accepts a bare upload name, never a path.
func validFileRef(file string) bool {
	if file == "" {
		return true
	}
	if len(file) > 255 || file == "." || file == ".." {
		return false
	}
	return !strings.ContainsAny(file, "/\\\x00")
}
