package models

// Message is a chat message as stamped by the broadcaster and kept in history.
type Message struct {
	ID        string `json:"id"`   // ULID
	RoomID    string `json:"room"`
	UserID    string `json:"user_id,omitempty"`
	User      string `json:"user"` // display name at send time
	Avatar    string `json:"avatar,omitempty"`
	Body      string `json:"msg"`
	File      string `json:"file,omitempty"` // upload reference, never the bytes
	Timestamp int64  `json:"ts"`             // Unix ms
	Seq       uint64 `json:"seq"`            // per-room sequence
}
