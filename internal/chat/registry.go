package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatwave/internal/metrics"
)

// Registry tracks live connections by id.
type Registry struct {
	mu         sync.RWMutex
	conns      map[string]*Conn
	membership *Membership
	logger     zerolog.Logger
}

// NewRegistry creates a registry that evicts connections from m on unregister.
func NewRegistry(m *Membership, logger zerolog.Logger) *Registry {
	return &Registry{
		conns:      make(map[string]*Conn),
		membership: m,
		logger:     logger,
	}
}

// Register makes c known to the server and returns its id.
func (r *Registry) Register(c *Conn) string {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.registered {
		return c.id
	}
	c.registered = true

	r.mu.Lock()
	r.conns[c.id] = c
	r.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	r.logger.Debug().
		Str("conn", c.id).
		Str("user", c.identity.Name).
		Bool("guest", c.identity.Guest).
		Msg("connection registered")
	return c.id
}

// Unregister removes the connection from its room, then forgets it and
// closes it. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.RLock()
	c, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return
	}

	c.opMu.Lock()
	if !c.registered {
		c.opMu.Unlock()
		return
	}
	c.registered = false
	room := r.membership.evict(c)

	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
	c.opMu.Unlock()

	c.Close()
	metrics.ConnectionsActive.Dec()
	r.logger.Debug().
		Str("conn", id).
		Str("user", c.identity.Name).
		Str("room", room).
		Str("reason", c.Reason()).
		Msg("connection unregistered")
}

// Get returns a registered connection.
func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Each calls fn for a snapshot of the registered connections.
func (r *Registry) Each(fn func(*Conn)) {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		fn(c)
	}
}
