package crypto

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// GuestPrefix marks user ids of unauthenticated connections.
const GuestPrefix = "guest-"

// NewUUIDv7 generates a time-ordered UUID v7 for registered users.
func NewUUIDv7() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewULID returns a sortable id for messages and connections.
func NewULID() string {
	return ulid.Make().String()
}

// NewGuestID returns a fresh user id for a guest connection.
func NewGuestID() string {
	return GuestPrefix + NewULID()
}
