package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/eldtechnologies/chatwave/internal/crypto"
	"github.com/eldtechnologies/chatwave/internal/models"
	"github.com/eldtechnologies/chatwave/internal/store"
)

type contextKey string

const UserContextKey contextKey = "user"

// Signature headers for authenticated HTTP requests.
const (
	HeaderUser      = "X-Chatwave-User"
	HeaderNonce     = "X-Chatwave-Nonce"
	HeaderTimestamp = "X-Chatwave-Timestamp"
	HeaderSignature = "X-Chatwave-Signature"
	HeaderRoomKey   = "X-Chatwave-Room-Key"
)

// UserLookup is the part of the data store auth needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthMiddleware handles signature verification for authenticated endpoints.
type AuthMiddleware struct {
	users  UserLookup
	nonces store.NonceStore
	window time.Duration
	now    func() time.Time
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(users UserLookup, nonces store.NonceStore) *AuthMiddleware {
	return &AuthMiddleware{
		users:  users,
		nonces: nonces,
		window: 30 * time.Second, // Tight window to minimize replay attack surface
		now:    time.Now,
	}
}

// authError is a verification failure with the status to report.
type authError struct {
	status int
	msg    string
}

func (e *authError) Error() string { return e.msg }

func unauthorized(msg string) error {
	return &authError{status: http.StatusUnauthorized, msg: msg}
}

// AuthStatus returns the HTTP status for an error from Verify.
func AuthStatus(err error) int {
	var ae *authError
	if errors.As(err, &ae) {
		return ae.status
	}
	return http.StatusInternalServerError
}

// Verify checks a signature over subject and consumes the nonce.
func (m *AuthMiddleware) Verify(ctx context.Context, userID, nonce, timestamp, signature, subject string) (*models.User, error) {
	if userID == "" || nonce == "" || timestamp == "" || signature == "" {
		return nil, unauthorized("missing auth parameters")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, unauthorized("invalid timestamp format")
	}
	if !m.isTimestampValid(ts) {
		return nil, unauthorized("timestamp expired or too far in future")
	}

	// Validate nonce format (min 24 chars for adequate entropy)
	if len(nonce) < 24 {
		return nil, unauthorized("nonce must be at least 24 characters")
	}
	if m.nonces.IsNonceUsed(ctx, userID, nonce) {
		return nil, unauthorized("nonce already used")
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, unauthorized("invalid user ID format")
	}

	user, err := m.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, unauthorized("user not found")
	}

	pubkey, err := crypto.ValidatePublicKey(user.PublicKey)
	if err != nil {
		return nil, unauthorized("invalid user public key")
	}
	if subject == "" {
		subject = userID
	}
	if err := crypto.VerifySignature(pubkey, crypto.SignaturePayload(subject, nonce, ts), signature); err != nil {
		return nil, unauthorized("invalid signature")
	}

	m.nonces.MarkNonceUsed(ctx, userID, nonce, 3*time.Minute)
	return user, nil
}

// RequireAuth middleware verifies Ed25519 signatures on requests.
// The signed subject is the hex SHA-256 of the body.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewBuffer(body)) // Reset for handler

		user, err := m.Verify(r.Context(),
			r.Header.Get(HeaderUser),
			r.Header.Get(HeaderNonce),
			r.Header.Get(HeaderTimestamp),
			r.Header.Get(HeaderSignature),
			sha256Hex(body),
		)
		if err != nil {
			status := AuthStatus(err)
			msg := err.Error()
			if status == http.StatusInternalServerError {
				msg = "database error"
			}
			jsonError(w, status, msg)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// VerifyConnect authenticates a websocket upgrade from the user, nonce, ts
// and sig query parameters. The signed subject is the user id.
func (m *AuthMiddleware) VerifyConnect(r *http.Request) (*models.User, error) {
	q := r.URL.Query()
	return m.Verify(r.Context(), q.Get("user"), q.Get("nonce"), q.Get("ts"), q.Get("sig"), q.Get("user"))
}

func (m *AuthMiddleware) isTimestampValid(ts int64) bool {
	now := m.now().UnixMilli()
	windowMs := m.window.Milliseconds()
	// Only accept timestamps from the past (within window), reject future timestamps
	return ts > now-windowMs && ts <= now
}

func sha256Hex(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetUserFromContext retrieves the authenticated user from the request context.
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
