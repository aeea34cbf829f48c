package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatwave/internal/api/middleware"
	"github.com/eldtechnologies/chatwave/internal/chat"
	"github.com/eldtechnologies/chatwave/internal/config"
	"github.com/eldtechnologies/chatwave/internal/store"
)

// Deps are the collaborators shared by all handlers. Redis may be nil.
type Deps struct {
	Config  *config.Config
	Data    store.DataStore
	History store.HistoryStore
	Redis   *store.RedisStore
	Hub     *chat.Hub
	Catalog *chat.RoomCatalog
	Auth    *middleware.AuthMiddleware
	Logger  zerolog.Logger
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	cfg     *config.Config
	data    store.DataStore
	history store.HistoryStore
	redis   *store.RedisStore
	hub     *chat.Hub
	catalog *chat.RoomCatalog
	auth    *middleware.AuthMiddleware
	logger  zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		cfg:     d.Config,
		data:    d.Data,
		history: d.History,
		redis:   d.Redis,
		hub:     d.Hub,
		catalog: d.Catalog,
		auth:    d.Auth,
		logger:  d.Logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// queryInt reads a positive integer query parameter, clamped to max.
func queryInt(r *http.Request, key string, def, max int) int {
	n := def
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	if n > max {
		n = max
	}
	return n
}

// sanitizeAvatar accepts an http(s) URL or a bare image name.
func sanitizeAvatar(avatar string) string {
	avatar = strings.TrimSpace(avatar)
	if avatar == "" || len(avatar) > 255 || strings.ContainsAny(avatar, " \"'<>\\") {
		return ""
	}
	if strings.HasPrefix(avatar, "https://") || strings.HasPrefix(avatar, "http://") {
		return avatar
	}
	if strings.Contains(avatar, "/") || strings.Contains(avatar, "..") {
		return ""
	}
	return avatar
}
