package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/cockroachdb/pebble/v2"

	"github.com/eldtechnologies/chatwave/internal/crypto"
	"github.com/eldtechnologies/chatwave/internal/models"
)

var errPebbleClosed = errors.New("history store closed")

// PebbleStore keeps room history in an embedded Pebble database.
//
// Keys are "m/" + room + "/" followed by the 8-byte big-endian timestamp and
// 8-byte big-endian sequence, so a room's messages are contiguous and sorted.
type PebbleStore struct {
	db     *pebble.DB
	closed atomic.Bool
}

// OpenPebbleStore opens or creates a Pebble database in dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func roomPrefix(roomID string) []byte {
	return []byte("m/" + roomID + "/")
}

// prefixEnd returns the smallest key greater than every key with prefix.
// Room ids never contain 0xff, so bumping the last byte is enough.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}

func messageKey(msg *models.Message) []byte {
	key := roomPrefix(msg.RoomID)
	key = binary.BigEndian.AppendUint64(key, uint64(msg.Timestamp))
	return binary.BigEndian.AppendUint64(key, msg.Seq)
}

// Store appends a message to its room.
func (s *PebbleStore) Store(_ context.Context, msg *models.Message) error {
	if s.closed.Load() {
		return errPebbleClosed
	}
	if msg.ID == "" {
		msg.ID = crypto.NewULID()
	}
	val, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.db.Set(messageKey(msg), val, pebble.Sync)
}

// Recent returns up to limit messages older than before, oldest first.
func (s *PebbleStore) Recent(_ context.Context, roomID string, limit int, before int64) ([]models.Message, error) {
	if s.closed.Load() {
		return nil, errPebbleClosed
	}

	prefix := roomPrefix(roomID)
	upper := prefixEnd(prefix)
	if before > 0 {
		upper = binary.BigEndian.AppendUint64(append([]byte(nil), prefix...), uint64(before))
	}

	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	out := make([]models.Message, 0, limit)
	for ok := it.Last(); ok && len(out) < limit; ok = it.Prev() {
		var m models.Message
		if err := json.Unmarshal(it.Value(), &m); err == nil {
			out = append(out, m)
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

// Ping reports whether the database is open.
func (s *PebbleStore) Ping(context.Context) error {
	if s.closed.Load() {
		return errPebbleClosed
	}
	return nil
}

// Close closes the database.
func (s *PebbleStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
