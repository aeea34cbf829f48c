package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string // Postgres; SQLite is used when empty
	SQLitePath  string
	RedisURL    string
	HistoryPath string // Pebble directory when Redis is not configured

	// Chat
	HistoryLimit    int
	MaxMessageBytes int
	SendBuffer      int
	RecorderQueue   int
	AutoCreateRooms bool
	AllowGuests     bool
	DefaultRoom     string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	env := getEnv("ENV", "development")
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              env,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLitePath:       getEnv("SQLITE_PATH", "./data/chatwave.db"),
		RedisURL:         os.Getenv("REDIS_URL"),
		HistoryPath:      os.Getenv("HISTORY_PATH"),
		HistoryLimit:     getEnvInt("HISTORY_LIMIT", 100),
		MaxMessageBytes:  getEnvInt("MAX_MESSAGE_BYTES", 4096),
		SendBuffer:       getEnvInt("WS_SEND_BUFFER", 256),
		RecorderQueue:    getEnvInt("RECORDER_QUEUE", 1024),
		AutoCreateRooms:  getEnv("AUTO_CREATE_ROOMS", "true") == "true",
		AllowGuests:      getEnv("ALLOW_GUESTS", strconv.FormatBool(env == "development")) == "true",
		DefaultRoom:      getEnv("DEFAULT_ROOM", "general"),
		AutoBlockEnabled: getEnv("AUTO_BLOCK_ENABLED", "false") == "true",
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
			}
		}
	}

	// In production, require database and redis URLs
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}
