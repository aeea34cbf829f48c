package chat

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatwave/internal/metrics"
)

// room is the live state of one room. mu guards members and seq and
// serializes everything enqueued to the members, so all members observe
// the same order.
type room struct {
	id      string
	mu      sync.Mutex
	members map[string]*Conn
	seq     uint64
}

// broadcast enqueues frame to every member except one. Caller holds r.mu.
func (r *room) broadcast(frame []byte, except *Conn) int {
	n := 0
	for _, c := range r.members {
		if c == except {
			continue
		}
		if c.enqueue(frame) {
			n++
		}
	}
	return n
}

// online returns the distinct display names of the members, sorted. Caller holds r.mu.
func (r *room) online() []string {
	seen := make(map[string]struct{}, len(r.members))
	names := make([]string, 0, len(r.members))
	for _, c := range r.members {
		name := c.identity.Name
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Membership maps rooms to member connections. A connection is a member of
// at most one room. Room state is kept once created; an empty room stays empty.
//
// Lock order: Conn.opMu, then Membership.mu, then room.mu.
type Membership struct {
	mu       sync.Mutex
	rooms    map[string]*room
	presence *Presence
	logger   zerolog.Logger
}

// NewMembership creates an empty membership table.
func NewMembership(logger zerolog.Logger) *Membership {
	return &Membership{
		rooms:  make(map[string]*room),
		logger: logger,
	}
}

func (m *Membership) lookup(id string, create bool) *room {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[id]
	if !ok && create {
		r = &room{id: id, members: make(map[string]*Conn)}
		m.rooms[id] = r
	}
	return r
}

// Join moves c into roomID, leaving its previous room first. ack, if any,
// is queued to c right after the user_joined broadcast, before any later
// frame of the room. It reports false when c is already in roomID, in which
// case nothing changes.
func (m *Membership) Join(c *Conn, roomID string, ack []byte) (bool, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if !c.registered {
		return false, ErrNotConnected
	}
	cur := c.Room()
	if cur == roomID {
		return false, nil
	}
	if cur != "" {
		m.remove(c, cur)
	}

	r := m.lookup(roomID, true)
	r.mu.Lock()
	r.members[c.id] = c
	c.setRoom(roomID)
	metrics.RoomMembers.WithLabelValues(roomID).Set(float64(len(r.members)))
	m.presence.changed(r, EventUserJoined, c)
	if ack != nil {
		c.enqueue(ack)
	}
	r.mu.Unlock()

	m.logger.Debug().
		Str("conn", c.id).
		Str("user", c.identity.Name).
		Str("room", roomID).
		Str("from", cur).
		Msg("joined room")
	return true, nil
}

// Leave removes c from roomID if that is its current room.
func (m *Membership) Leave(c *Conn, roomID string) bool {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if roomID == "" || c.Room() != roomID {
		return false
	}
	m.remove(c, roomID)

	m.logger.Debug().
		Str("conn", c.id).
		Str("user", c.identity.Name).
		Str("room", roomID).
		Msg("left room")
	return true
}

// evict drops c from whatever room it is in. Caller holds c.opMu.
func (m *Membership) evict(c *Conn) string {
	cur := c.Room()
	if cur != "" {
		m.remove(c, cur)
	}
	return cur
}

// remove deletes c from roomID and announces it. Caller holds c.opMu.
func (m *Membership) remove(c *Conn, roomID string) {
	r := m.lookup(roomID, false)
	if r == nil {
		c.setRoom("")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c.setRoom("")
	if _, ok := r.members[c.id]; !ok {
		return
	}
	delete(r.members, c.id)
	metrics.RoomMembers.WithLabelValues(roomID).Set(float64(len(r.members)))
	m.presence.changed(r, EventUserLeft, c)
}

// MembersOf returns the ids of the connections currently in roomID, sorted.
func (m *Membership) MembersOf(roomID string) []string {
	r := m.lookup(roomID, false)
	if r == nil {
		return []string{}
	}

	r.mu.Lock()
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// ActiveRooms returns the number of rooms that currently have members.
func (m *Membership) ActiveRooms() int {
	m.mu.Lock()
	rooms := make([]*room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	n := 0
	for _, r := range rooms {
		r.mu.Lock()
		if len(r.members) > 0 {
			n++
		}
		r.mu.Unlock()
	}
	return n
}
