package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/chatwave/internal/chat"
)

const maxHistoryPage = 200

// RecentResponse is a page of room history, oldest first.
type RecentResponse struct {
	Room     string              `json:"room"`
	Messages []chat.MessageEvent `json:"messages"`
	HasMore  bool                `json:"has_more"`
}

// Recent returns the latest messages of a room. before (Unix ms) pages
// further back.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	room, ok := h.authorizeRoom(w, r, chi.URLParam(r, "room"))
	if !ok {
		return
	}

	limit := queryInt(r, "limit", h.cfg.HistoryLimit, maxHistoryPage)
	var before int64
	if v := r.URL.Query().Get("before"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 0 {
			h.Error(w, http.StatusBadRequest, "invalid before timestamp")
			return
		}
		before = parsed
	}

	// One extra row tells whether an older page exists.
	msgs, err := h.history.Recent(r.Context(), room.ID, limit+1, before)
	if err != nil {
		h.logger.Error().Err(err).Str("room", room.ID).Msg("failed to read history")
		h.Error(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[1:]
	}

	events := make([]chat.MessageEvent, 0, len(msgs))
	for i := range msgs {
		events = append(events, chat.NewMessageEvent(&msgs[i]))
	}

	h.JSON(w, http.StatusOK, RecentResponse{
		Room:     room.ID,
		Messages: events,
		HasMore:  hasMore,
	})
}
