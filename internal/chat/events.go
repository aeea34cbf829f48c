package chat

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/eldtechnologies/chatwave/internal/models"
)

// Inbound events.
const (
	EventJoin        = "join"
	EventLeave       = "leave"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventUserList    = "user_list"
)

// Outbound events. typing and user_list are reused in both directions.
const (
	EventReceiveMessage = "receive_message"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventJoined         = "joined"
	EventError          = "error"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRequest is the payload of an inbound join.
type JoinRequest struct {
	Room string `json:"room"`
	Key  string `json:"key,omitempty"`
}

// RoomRequest is the payload of leave, typing and user_list.
type RoomRequest struct {
	Room string `json:"room"`
}

// SendRequest is the payload of send_message.
type SendRequest struct {
	Room     string `json:"room"`
	Msg      string `json:"msg"`
	Filename string `json:"filename,omitempty"`
}

// MessageEvent is the receive_message payload.
type MessageEvent struct {
	ID     string `json:"id"`
	Room   string `json:"room"`
	User   string `json:"user"`
	Msg    string `json:"msg"`
	Time   string `json:"time"`
	TS     int64  `json:"ts"`
	Seq    uint64 `json:"seq"`
	Avatar string `json:"avatar,omitempty"`
	File   string `json:"file,omitempty"`
}

// NewMessageEvent converts a stamped message to its wire form.
func NewMessageEvent(m *models.Message) MessageEvent {
	return MessageEvent{
		ID:     m.ID,
		Room:   m.RoomID,
		User:   m.User,
		Msg:    m.Body,
		Time:   time.UnixMilli(m.Timestamp).UTC().Format(time.RFC3339),
		TS:     m.Timestamp,
		Seq:    m.Seq,
		Avatar: m.Avatar,
		File:   m.File,
	}
}

// PresenceEvent is the payload of user_joined, user_left and user_list.
type PresenceEvent struct {
	Room   string   `json:"room"`
	User   string   `json:"user,omitempty"`
	Online []string `json:"online"`
}

// TypingEvent is the outbound typing payload.
type TypingEvent struct {
	Room string `json:"room"`
	User string `json:"user"`
}

// JoinedEvent acknowledges a join to the joining connection.
type JoinedEvent struct {
	Room        string `json:"room"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ErrorEvent reports a rejected inbound event to its originator.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
	Room    string `json:"room,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// encodeFrame marshals an outbound frame without HTML escaping.
func encodeFrame(event string, data any) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(outbound{Event: event, Data: data}); err != nil {
		// all payloads are plain structs
		panic(err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}
