package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/eldtechnologies/chatwave/internal/metrics"
	"github.com/eldtechnologies/chatwave/internal/models"
)

// RoomIDPattern is the accepted form of a room id.
var RoomIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

// RoomStore is the part of the data store the catalog needs.
type RoomStore interface {
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	GetRoomKeyHash(ctx context.Context, id string) (string, error)
	CreateRoom(ctx context.Context, room *models.Room, keyHash string) (*models.Room, error)
}

type catalogEntry struct {
	room    *models.Room
	keyHash string
}

// RoomCatalog resolves room ids for joins. Lookups of the same id are
// coalesced, and resolved rooms are cached for the life of the process.
type RoomCatalog struct {
	store      RoomStore
	autoCreate bool
	group      singleflight.Group

	mu    sync.RWMutex
	cache map[string]catalogEntry
}

// NewRoomCatalog creates a catalog. With autoCreate, unknown rooms are
// created as public rooms on first join.
func NewRoomCatalog(store RoomStore, autoCreate bool) *RoomCatalog {
	return &RoomCatalog{
		store:      store,
		autoCreate: autoCreate,
		cache:      make(map[string]catalogEntry),
	}
}

// Resolve returns the room a connection may join with the given key.
func (c *RoomCatalog) Resolve(ctx context.Context, id, key string) (*models.Room, error) {
	if !RoomIDPattern.MatchString(id) {
		return nil, ErrInvalidRoom
	}

	c.mu.RLock()
	entry, ok := c.cache[id]
	c.mu.RUnlock()

	if !ok {
		v, err, _ := c.group.Do(id, func() (any, error) {
			return c.load(ctx, id)
		})
		if err != nil {
			return nil, err
		}
		entry = v.(catalogEntry)
	}

	if entry.room.IsPrivate {
		if key == "" || bcrypt.CompareHashAndPassword([]byte(entry.keyHash), []byte(key)) != nil {
			return nil, ErrAccessDenied
		}
	}
	return entry.room, nil
}

func (c *RoomCatalog) load(ctx context.Context, id string) (catalogEntry, error) {
	room, err := c.store.GetRoom(ctx, id)
	if err != nil {
		return catalogEntry{}, fmt.Errorf("get room %s: %w", id, err)
	}

	if room == nil {
		if !c.autoCreate {
			return catalogEntry{}, ErrUnknownRoom
		}
		room, err = c.store.CreateRoom(ctx, &models.Room{ID: id, Name: id}, "")
		if err != nil {
			// lost a race with another creator
			if existing, getErr := c.store.GetRoom(ctx, id); getErr == nil && existing != nil {
				room = existing
			} else {
				return catalogEntry{}, errors.Join(fmt.Errorf("create room %s: %w", id, err), getErr)
			}
		} else {
			metrics.RoomsCreated.Inc()
		}
	}

	entry := catalogEntry{room: room}
	if room.IsPrivate {
		entry.keyHash, err = c.store.GetRoomKeyHash(ctx, id)
		if err != nil {
			return catalogEntry{}, fmt.Errorf("get room key %s: %w", id, err)
		}
	}

	c.mu.Lock()
	c.cache[id] = entry
	c.mu.Unlock()
	return entry, nil
}

// Forget drops a cached room so the next join reloads it.
func (c *RoomCatalog) Forget(id string) {
	c.mu.Lock()
	delete(c.cache, id)
	c.mu.Unlock()
}
