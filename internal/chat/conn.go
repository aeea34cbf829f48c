package chat

import (
	"sync"
	"time"

	"github.com/eldtechnologies/chatwave/internal/crypto"
	"github.com/eldtechnologies/chatwave/internal/metrics"
)

// Identity is who a connection speaks as. It is fixed for the life of the connection.
type Identity struct {
	UserID string
	Name   string
	Avatar string
	Guest  bool
}

// Close reasons reported by Conn.Reason.
const (
	ReasonClosed       = "closed"
	ReasonSlowConsumer = "slow_consumer"
)

// Conn is the server side of one transport session.
//
// Outbound frames go through a bounded queue drained by the transport's
// writer. The queue is never closed; Done signals the writer to stop.
type Conn struct {
	id       string
	identity Identity
	send     chan []byte

	done      chan struct{}
	closeOnce sync.Once
	reason    string

	// opMu serializes membership operations of this connection.
	opMu       sync.Mutex
	registered bool

	mu         sync.Mutex
	room       string
	lastTyping time.Time
}

// NewConn creates an unregistered connection with an outbound queue of the given size.
func NewConn(identity Identity, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 256
	}
	return &Conn{
		id:       crypto.NewULID(),
		identity: identity,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Identity() Identity { return c.identity }

// Room returns the current room, or "" before the first join.
func (c *Conn) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// LastTyping returns when the connection last sent a typing notification.
func (c *Conn) LastTyping() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTyping
}

// Outbound is the queue the transport writer drains.
func (c *Conn) Outbound() <-chan []byte { return c.send }

// Done is closed once the connection must stop writing.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Reason returns why the connection was closed, or "" while open.
func (c *Conn) Reason() string {
	select {
	case <-c.done:
		return c.reason
	default:
		return ""
	}
}

// Close stops the connection. Safe to call more than once.
func (c *Conn) Close() { c.closeWith(ReasonClosed) }

func (c *Conn) closeWith(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

func (c *Conn) setRoom(room string) {
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
}

func (c *Conn) touchTyping(t time.Time) {
	c.mu.Lock()
	c.lastTyping = t
	c.mu.Unlock()
}

// enqueue never blocks. A full queue closes the connection as a slow consumer.
func (c *Conn) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		metrics.Deliveries.Inc()
		return true
	default:
		c.closeWith(ReasonSlowConsumer)
		metrics.SlowConsumers.Inc()
		return false
	}
}
