package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestRateLimiterWithoutRedisPasses(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{})
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/register", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestRateLimiterWhitelist(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{
		Whitelist: []string{"10.0.0.1", "192.168.0.0/16", "not-a-cidr/99"},
	})

	for ip, want := range map[string]bool{
		"10.0.0.1":    true,
		"10.0.0.2":    false,
		"192.168.4.7": true,
		"bogus":       false,
	} {
		if got := rl.isWhitelisted(ip); got != want {
			t.Errorf("isWhitelisted(%q) = %v, want %v", ip, got, want)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	for in, want := range map[string]string{
		"/who/0190a6b2":   "/who/:id",
		"/rooms/general":  "/rooms/:id",
		"/recent/general": "/recent/:room",
		"/health":         "/health",
	} {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFindLimitFirstMatchWins(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{})

	tests := []struct {
		method, path string
		route        string
	}{
		{http.MethodPost, "/rooms", "POST /rooms"},
		{http.MethodGet, "/rooms/general", "GET /rooms"},
		{http.MethodGet, "/recent/general", "GET /recent/"},
		{http.MethodGet, "/ws", "GET /ws"},
		{http.MethodGet, "/health", ""},
	}
	for _, tt := range tests {
		l, ok := rl.findLimit(httptest.NewRequest(tt.method, tt.path, nil))
		if tt.route == "" {
			if ok {
				t.Errorf("%s %s: expected no limit, got %q", tt.method, tt.path, l.Route)
			}
			continue
		}
		if !ok || l.Route != tt.route {
			t.Errorf("%s %s: expected %q, got %q", tt.method, tt.path, tt.route, l.Route)
		}
	}
}

func TestConnectKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?name=guest", nil)
	r.RemoteAddr = "203.0.113.9:5000"
	if got := connectKey(r); got != "ratelimit:connect:203.0.113.9" {
		t.Fatalf("guest key: got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws?user=u1&sig=abc", nil)
	if got := connectKey(r); got != "ratelimit:connect:u1" {
		t.Fatalf("signed key: got %q", got)
	}
}
