package middleware

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eldtechnologies/chatwave/internal/crypto"
	"github.com/eldtechnologies/chatwave/internal/models"
	"github.com/eldtechnologies/chatwave/internal/store"
)

type userMap map[uuid.UUID]*models.User

func (m userMap) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return m[id], nil
}

func newTestAuth(t *testing.T) (*AuthMiddleware, *models.User, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	user := &models.User{
		ID:        uuid.New(),
		PublicKey: base64.StdEncoding.EncodeToString(pub),
		Name:      "alice",
	}
	return NewAuthMiddleware(userMap{user.ID: user}, store.NewMemoryNonces()), user, priv
}

func TestVerifyConnect(t *testing.T) {
	auth, user, priv := newTestAuth(t)

	q := crypto.ConnectQuery(priv, user.ID.String())
	r := httptest.NewRequest(http.MethodGet, "/ws?"+q.Encode(), nil)

	got, err := auth.VerifyConnect(r)
	if err != nil {
		t.Fatalf("VerifyConnect: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, got.ID)
	}

	// Same nonce again is a replay
	if _, err := auth.VerifyConnect(r); err == nil || AuthStatus(err) != http.StatusUnauthorized {
		t.Fatalf("expected replay to be rejected, got %v", err)
	}
}

func TestVerifyRejects(t *testing.T) {
	auth, user, priv := newTestAuth(t)
	_, otherPriv, _ := ed25519.GenerateKey(rand.Reader)
	id := user.ID.String()

	tests := []struct {
		name   string
		mutate func(q url.Values)
	}{
		{"missing signature", func(q url.Values) { q.Del("sig") }},
		{"short nonce", func(q url.Values) { q.Set("nonce", "abc") }},
		{"bad timestamp", func(q url.Values) { q.Set("ts", "yesterday") }},
		{"stale timestamp", func(q url.Values) {
			q.Set("ts", strconv.FormatInt(time.Now().Add(-time.Minute).UnixMilli(), 10))
		}},
		{"unknown user", func(q url.Values) { q.Set("user", uuid.NewString()) }},
		{"wrong key", func(q url.Values) {
			q.Set("sig", crypto.ConnectQuery(otherPriv, id).Get("sig"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := crypto.ConnectQuery(priv, id)
			tt.mutate(q)
			r := httptest.NewRequest(http.MethodGet, "/ws?"+q.Encode(), nil)

			_, err := auth.VerifyConnect(r)
			if err == nil {
				t.Fatal("expected error")
			}
			if AuthStatus(err) != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d (%v)", AuthStatus(err), err)
			}
		})
	}
}

func TestRequireAuthSignsBody(t *testing.T) {
	auth, user, priv := newTestAuth(t)

	var seen *models.User
	h := auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	body := `{"name":"lobby"}`
	nonce, ts, sig := crypto.Sign(priv, sha256Hex([]byte(body)))

	r := httptest.NewRequest(http.MethodPost, "/rooms", strings.NewReader(body))
	r.Header.Set(HeaderUser, user.ID.String())
	r.Header.Set(HeaderNonce, nonce)
	r.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	r.Header.Set(HeaderSignature, sig)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if seen == nil || seen.ID != user.ID {
		t.Fatal("expected user in context")
	}

	// A different body does not match the signature
	nonce, ts, sig = crypto.Sign(priv, sha256Hex([]byte(body)))
	r = httptest.NewRequest(http.MethodPost, "/rooms", strings.NewReader(`{"name":"other"}`))
	r.Header.Set(HeaderUser, user.ID.String())
	r.Header.Set(HeaderNonce, nonce)
	r.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	r.Header.Set(HeaderSignature, sig)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
