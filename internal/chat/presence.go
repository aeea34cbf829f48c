package chat

import (
	"github.com/eldtechnologies/chatwave/internal/metrics"
)

// Presence derives the online list of a room from its members and
// announces every change to everyone in the room.
type Presence struct {
	membership *Membership
}

// NewPresence attaches a presence tracker to m.
func NewPresence(m *Membership) *Presence {
	p := &Presence{membership: m}
	m.presence = p
	return p
}

// changed broadcasts the new snapshot of r. Caller holds r.mu, so
// snapshots of one room are enqueued in the order they were computed.
func (p *Presence) changed(r *room, event string, who *Conn) {
	if p == nil {
		return
	}
	frame := encodeFrame(event, PresenceEvent{
		Room:   r.id,
		User:   who.identity.Name,
		Online: r.online(),
	})
	r.broadcast(frame, nil)
	metrics.PresenceBroadcasts.WithLabelValues(event).Inc()
}

// Snapshot returns the sorted distinct display names currently in roomID.
func (p *Presence) Snapshot(roomID string) []string {
	r := p.membership.lookup(roomID, false)
	if r == nil {
		return []string{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online()
}

// Reply sends the online list of the current room of c to c alone. roomID
// must be empty or name that room; members of other rooms stay hidden.
func (p *Presence) Reply(c *Conn, roomID string) error {
	cur := c.Room()
	if cur == "" || (roomID != "" && roomID != cur) {
		return ErrNotInRoom
	}

	r := p.membership.lookup(cur, false)
	if r == nil {
		return ErrNotInRoom
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[c.id]; !ok {
		return ErrNotInRoom
	}
	c.enqueue(encodeFrame(EventUserList, PresenceEvent{
		Room:   cur,
		Online: r.online(),
	}))
	return nil
}
