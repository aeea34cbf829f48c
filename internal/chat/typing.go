package chat

import (
	"time"

	"github.com/eldtechnologies/chatwave/internal/metrics"
)

// Typing relays typing notifications to the other members of a room.
type Typing struct {
	membership *Membership
	now        func() time.Time
}

// NewTyping creates a typing coordinator over m.
func NewTyping(m *Membership) *Typing {
	return &Typing{membership: m, now: time.Now}
}

// Notify relays "c is typing" to everyone else in roomID. It is dropped
// silently unless roomID is the current room of c. Reports whether it was relayed.
func (t *Typing) Notify(c *Conn, roomID string) bool {
	cur := c.Room()
	if cur == "" || (roomID != "" && roomID != cur) {
		return false
	}

	r := t.membership.lookup(cur, false)
	if r == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[c.id]; !ok {
		return false
	}
	c.touchTyping(t.now())
	r.broadcast(encodeFrame(EventTyping, TypingEvent{Room: cur, User: c.identity.Name}), c)
	metrics.TypingRelayed.Inc()
	return true
}
