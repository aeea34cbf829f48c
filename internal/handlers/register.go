package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/eldtechnologies/chatwave/internal/chat"
	"github.com/eldtechnologies/chatwave/internal/crypto"
	"github.com/eldtechnologies/chatwave/internal/metrics"
)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	PublicKey string `json:"public_key"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
}

// RegisterResponse represents the registration response.
type RegisterResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ProfileURL string `json:"profile_url"`
}

// Register handles user registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.PublicKey == "" {
		h.Error(w, http.StatusBadRequest, "public_key is required")
		return
	}
	if _, err := crypto.ValidatePublicKey(req.PublicKey); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid public_key: must be base64-encoded Ed25519 public key (32 bytes)")
		return
	}

	name := chat.SanitizeName(req.Name)
	avatar := sanitizeAvatar(req.Avatar)
	if req.Avatar != "" && avatar == "" {
		h.Error(w, http.StatusBadRequest, "invalid avatar")
		return
	}

	existing, err := h.data.GetUserByPublicKey(r.Context(), req.PublicKey)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if existing != nil {
		// Idempotent registration
		h.JSON(w, http.StatusOK, RegisterResponse{
			ID:         existing.ID.String(),
			Name:       existing.Name,
			ProfileURL: fmt.Sprintf("/who/%s", existing.ID.String()),
		})
		return
	}

	user, err := h.data.CreateUser(r.Context(), req.PublicKey, name, avatar)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create user")
		h.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	metrics.UsersRegistered.Inc()

	h.JSON(w, http.StatusCreated, RegisterResponse{
		ID:         user.ID.String(),
		Name:       user.Name,
		ProfileURL: fmt.Sprintf("/who/%s", user.ID.String()),
	})
}
