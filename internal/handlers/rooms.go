package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/eldtechnologies/chatwave/internal/api/middleware"
	"github.com/eldtechnologies/chatwave/internal/chat"
	"github.com/eldtechnologies/chatwave/internal/metrics"
	"github.com/eldtechnologies/chatwave/internal/models"
)

var slugInvalid = regexp.MustCompile(`[^a-z0-9_-]+`)

// RoomInfo represents a room in list and detail responses.
type RoomInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	IsPrivate    bool     `json:"is_private"`
	MessageCount int64    `json:"message_count"`
	LastActive   string   `json:"last_active"`
	OnlineCount  int      `json:"online_count"`
	Online       []string `json:"online,omitempty"`
}

func (h *Handler) roomInfo(room *models.Room) RoomInfo {
	return RoomInfo{
		ID:           room.ID,
		Name:         room.Name,
		Description:  room.Description,
		IsPrivate:    room.IsPrivate,
		MessageCount: room.MessageCount,
		LastActive:   room.LastActiveAt.UTC().Format(time.RFC3339),
		OnlineCount:  len(h.hub.Online(room.ID)),
	}
}

// ListRoomsResponse represents the room list response.
type ListRoomsResponse struct {
	Rooms  []RoomInfo `json:"rooms"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// ListRooms returns public rooms, most recently active first.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20, 100)
	offset := 0
	if r.URL.Query().Get("offset") != "" {
		offset = queryInt(r, "offset", 0, 1<<20)
	}

	rooms, total, err := h.data.ListPublicRooms(r.Context(), limit, offset)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}

	infos := make([]RoomInfo, 0, len(rooms))
	for i := range rooms {
		infos = append(infos, h.roomInfo(&rooms[i]))
	}

	h.JSON(w, http.StatusOK, ListRoomsResponse{
		Rooms:  infos,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetRoom returns a room with its presence snapshot. Private rooms need
// the room key header.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := h.authorizeRoom(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	info := h.roomInfo(room)
	info.Online = h.hub.Online(room.ID)
	h.JSON(w, http.StatusOK, info)
}

// authorizeRoom loads a room and checks the key of private rooms. It writes
// the error response and reports false on failure.
func (h *Handler) authorizeRoom(w http.ResponseWriter, r *http.Request, id string) (*models.Room, bool) {
	if !chat.RoomIDPattern.MatchString(id) {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return nil, false
	}

	room, err := h.data.GetRoom(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return nil, false
	}
	if room == nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return nil, false
	}

	if room.IsPrivate {
		key := r.Header.Get(middleware.HeaderRoomKey)
		if key == "" {
			h.Error(w, http.StatusForbidden, "room key required for private rooms")
			return nil, false
		}
		hash, err := h.data.GetRoomKeyHash(r.Context(), id)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "database error")
			return nil, false
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
			h.Error(w, http.StatusForbidden, "invalid room key")
			return nil, false
		}
	}
	return room, true
}

// CreateRoomRequest represents the request to create a room.
type CreateRoomRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
	Key         string `json:"key"`
}

// CreateRoomResponse represents the response after creating a room.
type CreateRoomResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
}

// slugify derives a room id from a display name.
func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = slugInvalid.ReplaceAllString(s, "")
	if len(s) > 50 {
		s = s[:50]
	}
	return strings.Trim(s, "-")
}

// CreateRoom creates a new room owned by the authenticated user.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := chat.SanitizeText(req.Name, 50)
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = slugify(name)
	}
	if !chat.RoomIDPattern.MatchString(id) {
		h.Error(w, http.StatusBadRequest, "room id must be 1-50 characters: letters, numbers, '-' or '_'")
		return
	}
	if name == "" {
		name = id
	}

	if req.IsPrivate && len(req.Key) < 16 {
		h.Error(w, http.StatusBadRequest, "private rooms require a key of at least 16 characters")
		return
	}

	existing, err := h.data.GetRoom(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if existing != nil {
		h.Error(w, http.StatusConflict, "room already exists")
		return
	}

	var keyHash string
	if req.IsPrivate {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Key), bcrypt.DefaultCost)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to hash key")
			return
		}
		keyHash = string(hash)
	}

	room, err := h.data.CreateRoom(r.Context(), &models.Room{
		ID:          id,
		Name:        name,
		Description: chat.SanitizeText(req.Description, 200),
		CreatedBy:   &user.ID,
	}, keyHash)
	if err != nil {
		h.logger.Error().Err(err).Str("room", id).Msg("failed to create room")
		h.Error(w, http.StatusInternalServerError, "failed to create room")
		return
	}
	h.catalog.Forget(room.ID)
	metrics.RoomsCreated.Inc()

	h.JSON(w, http.StatusCreated, CreateRoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		IsPrivate: room.IsPrivate,
	})
}
