package handlers

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/chatwave/internal/api/middleware"
	"github.com/eldtechnologies/chatwave/internal/chat"
	"github.com/eldtechnologies/chatwave/internal/config"
	"github.com/eldtechnologies/chatwave/internal/crypto"
	"github.com/eldtechnologies/chatwave/internal/models"
	"github.com/eldtechnologies/chatwave/internal/store"
)

type fixture struct {
	cfg      *config.Config
	data     *store.SQLiteStore
	history  *store.MemoryHistory
	hub      *chat.Hub
	recorder *chat.Recorder
	router   http.Handler
}

func newFixture(t *testing.T, opts ...func(*config.Config)) *fixture {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{
		Env:             "development",
		HistoryLimit:    50,
		MaxMessageBytes: 4096,
		SendBuffer:      64,
		RecorderQueue:   64,
		AutoCreateRooms: true,
		AllowGuests:     true,
		DefaultRoom:     "general",
	}
	for _, o := range opts {
		o(cfg)
	}

	data, err := store.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(data.Close)

	history := store.NewMemoryHistory(100)
	recorder := chat.NewRecorder(history, data, cfg.RecorderQueue, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		recorder.Run(context.Background())
		close(done)
	}()
	t.Cleanup(func() {
		recorder.Stop()
		<-done
	})

	catalog := chat.NewRoomCatalog(data, cfg.AutoCreateRooms)
	hub := chat.NewHub(chat.Config{SendBuffer: cfg.SendBuffer, MaxMessageBytes: cfg.MaxMessageBytes}, catalog, recorder, zerolog.Nop())
	auth := middleware.NewAuthMiddleware(data, store.NewMemoryNonces())

	h := NewHandler(Deps{
		Config:  cfg,
		Data:    data,
		History: history,
		Hub:     hub,
		Catalog: catalog,
		Auth:    auth,
		Logger:  zerolog.Nop(),
	})

	r := chi.NewRouter()
	r.Get("/api", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Post("/register", h.Register)
	r.Get("/who/{id}", h.Who)
	r.Get("/rooms", h.ListRooms)
	r.Get("/rooms/{id}", h.GetRoom)
	r.Get("/recent/{room}", h.Recent)
	r.Get("/ws", h.ServeWS)
	r.With(auth.RequireAuth).Post("/rooms", h.CreateRoom)

	return &fixture{cfg: cfg, data: data, history: history, hub: hub, recorder: recorder, router: r}
}

// newUser registers a user directly in the store.
func (f *fixture) newUser(t *testing.T, name string) (*models.User, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	u, err := f.data.CreateUser(context.Background(), base64.StdEncoding.EncodeToString(pub), name, "")
	require.NoError(t, err)
	return u, priv
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	r := httptest.NewRequest(method, path, bytes.NewReader(raw))
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

// signed performs a request carrying signature headers for user.
func (f *fixture) signed(t *testing.T, method, path string, body any, user *models.User, priv ed25519.PrivateKey) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	sum := sha256.Sum256(raw)
	nonce, ts, sig := crypto.Sign(priv, hex.EncodeToString(sum[:]))

	r := httptest.NewRequest(method, path, bytes.NewReader(raw))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set(middleware.HeaderUser, user.ID.String())
	r.Header.Set(middleware.HeaderNonce, nonce)
	r.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	r.Header.Set(middleware.HeaderSignature, sig)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
