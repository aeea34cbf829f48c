package models

import (
	"time"

	"github.com/google/uuid"
)

// Room is the persisted metadata of a chat room. Live membership is not stored.
type Room struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	IsPrivate    bool       `json:"is_private"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActiveAt time.Time  `json:"last_active_at"`
	MessageCount int64      `json:"message_count"`
}
