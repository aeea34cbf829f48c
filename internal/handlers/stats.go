package handlers

import (
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"
)

// RoomStats represents stats for a single room.
type RoomStats struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MessageCount int64  `json:"message_count"`
	Online       int    `json:"online"`
}

// MessagePreview represents a preview of a message.
type MessagePreview struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalUsers     int64            `json:"total_users"`
	TotalRooms     int64            `json:"total_rooms"`
	TotalMessages  int64            `json:"total_messages"`
	Connections    int              `json:"connections"`
	ActiveRooms    int              `json:"active_rooms"`
	LastActivity   string           `json:"last_activity"`
	TopRooms       []RoomStats      `json:"top_rooms"`
	RecentMessages []MessagePreview `json:"recent_messages"`
}

// Stats returns aggregate platform statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalUsers, err := h.data.CountUsers(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count users")
		return
	}

	totalRooms, err := h.data.CountPublicRooms(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count rooms")
		return
	}

	totalMessages, err := h.data.SumMessageCount(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to sum messages")
		return
	}

	lastActivityTime, err := h.data.GetMostRecentActivity(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to get last activity")
		return
	}

	lastActivity := "no activity yet"
	if lastActivityTime != nil {
		lastActivity = formatTimeAgo(*lastActivityTime)
	}

	topRooms, err := h.data.GetTopActiveRooms(ctx, 5)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to get top rooms")
		return
	}

	top := make([]RoomStats, 0, len(topRooms))
	for _, room := range topRooms {
		top = append(top, RoomStats{
			ID:           room.ID,
			Name:         room.Name,
			MessageCount: room.MessageCount,
			Online:       len(h.hub.Online(room.ID)),
		})
	}

	var recent []MessagePreview
	if h.cfg.DefaultRoom != "" {
		// Non-fatal, continue with empty messages
		messages, _ := h.history.Recent(ctx, h.cfg.DefaultRoom, 5, 0)
		for _, msg := range messages {
			recent = append(recent, MessagePreview{
				ID:        msg.ID,
				User:      msg.User,
				Body:      truncate(msg.Body, 200),
				Timestamp: msg.Timestamp,
			})
		}
	}
	if recent == nil {
		recent = []MessagePreview{}
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalUsers:     totalUsers,
		TotalRooms:     totalRooms,
		TotalMessages:  totalMessages,
		Connections:    h.hub.Registry.Len(),
		ActiveRooms:    h.hub.Membership.ActiveRooms(),
		LastActivity:   lastActivity,
		TopRooms:       top,
		RecentMessages: recent,
	})
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	default:
		return plural(int(diff.Hours()/24), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
