package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"ENV", "PORT", "DATABASE_URL", "REDIS_URL", "HISTORY_LIMIT", "ALLOW_GUESTS", "RATE_LIMIT_WHITELIST"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Fatalf("expected port 8080, got %q", cfg.Port)
	}
	if !cfg.IsDevelopment() {
		t.Fatal("expected development by default")
	}
	if !cfg.AllowGuests {
		t.Fatal("expected guests allowed in development")
	}
	if cfg.HistoryLimit != 100 || cfg.DefaultRoom != "general" || !cfg.AutoCreateRooms {
		t.Fatalf("unexpected chat defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "staging")
	t.Setenv("HISTORY_LIMIT", "25")
	t.Setenv("WS_SEND_BUFFER", "not-a-number")
	t.Setenv("AUTO_CREATE_ROOMS", "false")
	t.Setenv("RATE_LIMIT_WHITELIST", " 10.0.0.1, 192.168.0.0/16 ,")

	cfg := Load()

	if cfg.AllowGuests {
		t.Fatal("expected guests disabled outside development")
	}
	if cfg.HistoryLimit != 25 {
		t.Fatalf("expected history limit 25, got %d", cfg.HistoryLimit)
	}
	if cfg.SendBuffer != 256 {
		t.Fatalf("expected default send buffer for bad input, got %d", cfg.SendBuffer)
	}
	if cfg.AutoCreateRooms {
		t.Fatal("expected auto-create disabled")
	}
	if len(cfg.RateLimitWhitelist) != 2 || cfg.RateLimitWhitelist[1] != "192.168.0.0/16" {
		t.Fatalf("unexpected whitelist: %v", cfg.RateLimitWhitelist)
	}
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic without DATABASE_URL")
		}
	}()
	Load()
}
