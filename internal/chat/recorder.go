package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatwave/internal/metrics"
	"github.com/eldtechnologies/chatwave/internal/models"
)

// HistoryWriter persists delivered messages.
type HistoryWriter interface {
	Store(ctx context.Context, msg *models.Message) error
}

// RoomCounter tracks per-room activity in the room store.
type RoomCounter interface {
	IncrementMessageCount(ctx context.Context, roomID string) error
}

// Recorder writes delivered messages to history in the background.
// Record never blocks; when the queue is full the message is dropped from
// history (it has already been delivered).
type Recorder struct {
	history HistoryWriter
	rooms   RoomCounter
	queue   chan *models.Message
	timeout time.Duration
	logger  zerolog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRecorder creates a recorder with a queue of the given size. rooms may be nil.
func NewRecorder(history HistoryWriter, rooms RoomCounter, size int, logger zerolog.Logger) *Recorder {
	if size <= 0 {
		size = 1024
	}
	return &Recorder{
		history: history,
		rooms:   rooms,
		queue:   make(chan *models.Message, size),
		timeout: 5 * time.Second,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// Record queues msg for persistence. Reports false if it was dropped.
func (r *Recorder) Record(msg *models.Message) bool {
	select {
	case <-r.stop:
		metrics.HistoryWrites.WithLabelValues("dropped").Inc()
		return false
	default:
	}

	select {
	case r.queue <- msg:
		return true
	default:
		metrics.HistoryWrites.WithLabelValues("dropped").Inc()
		r.logger.Warn().
			Str("room", msg.RoomID).
			Str("message", msg.ID).
			Msg("history queue full, message not recorded")
		return false
	}
}

// Run writes queued messages until ctx is cancelled or Stop is called,
// then drains what is already queued.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-r.queue:
			r.write(msg)
		case <-ctx.Done():
			r.drain()
			return nil
		case <-r.stop:
			r.drain()
			return nil
		}
	}
}

// Stop ends Run after draining. Later Records are dropped.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Recorder) drain() {
	for {
		select {
		case msg := <-r.queue:
			r.write(msg)
		default:
			return
		}
	}
}

func (r *Recorder) write(msg *models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.history.Store(ctx, msg); err != nil {
		metrics.HistoryWrites.WithLabelValues("error").Inc()
		r.logger.Error().
			Err(err).
			Str("room", msg.RoomID).
			Str("message", msg.ID).
			Msg("failed to record message")
		return
	}
	metrics.HistoryWrites.WithLabelValues("ok").Inc()

	if r.rooms != nil {
		if err := r.rooms.IncrementMessageCount(ctx, msg.RoomID); err != nil {
			r.logger.Warn().Err(err).Str("room", msg.RoomID).Msg("failed to update room activity")
		}
	}
}
