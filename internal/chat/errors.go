package chat

import "errors"

var (
	ErrNotInRoom      = errors.New("connection is not in that room")
	ErrEmptyMessage   = errors.New("message has neither text nor file")
	ErrMessageTooLong = errors.New("message too long")
	ErrInvalidFile    = errors.New("invalid file reference")
	ErrUnknownRoom    = errors.New("room does not exist")
	ErrInvalidRoom    = errors.New("invalid room id")
	ErrAccessDenied   = errors.New("room key required or invalid")
	ErrNotConnected   = errors.New("connection is not registered")
	ErrBadFrame       = errors.New("malformed frame")
)

// Wire codes sent in error events.
const (
	CodeNotInRoom      = "not_in_room"
	CodeEmptyMessage   = "empty_message"
	CodeMessageTooLong = "message_too_long"
	CodeUnknownRoom    = "unknown_room"
	CodeAccessDenied   = "access_denied"
	CodeBadRequest     = "bad_request"
	CodeInternal       = "internal_error"
)

// ErrorCode maps an error to the code reported to the client.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotInRoom), errors.Is(err, ErrNotConnected):
		return CodeNotInRoom
	case errors.Is(err, ErrEmptyMessage):
		return CodeEmptyMessage
	case errors.Is(err, ErrMessageTooLong):
		return CodeMessageTooLong
	case errors.Is(err, ErrUnknownRoom):
		return CodeUnknownRoom
	case errors.Is(err, ErrAccessDenied):
		return CodeAccessDenied
	case errors.Is(err, ErrInvalidRoom), errors.Is(err, ErrInvalidFile), errors.Is(err, ErrBadFrame):
		return CodeBadRequest
	default:
		return CodeInternal
	}
}
