package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eldtechnologies/chatwave/internal/api"
	"github.com/eldtechnologies/chatwave/internal/api/middleware"
	"github.com/eldtechnologies/chatwave/internal/chat"
	"github.com/eldtechnologies/chatwave/internal/config"
	"github.com/eldtechnologies/chatwave/internal/handlers"
	"github.com/eldtechnologies/chatwave/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Users and rooms: PostgreSQL when configured, SQLite otherwise
	var data store.DataStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("schema setup failed")
		}
		data = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("sqlite open failed")
		}
		data = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite")
	}
	defer data.Close()

	// Initialize Redis store
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// History: Redis, then Pebble, then process memory
	var history store.HistoryStore
	var nonces store.NonceStore
	switch {
	case redisStore != nil:
		history = redisStore
		nonces = redisStore
	case cfg.HistoryPath != "":
		pebbleStore, err := store.OpenPebbleStore(cfg.HistoryPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.HistoryPath).Msg("pebble open failed")
		}
		defer pebbleStore.Close()
		history = pebbleStore
		logger.Info().Str("path", cfg.HistoryPath).Msg("using Pebble history")
	default:
		history = store.NewMemoryHistory(cfg.HistoryLimit * 10)
		logger.Warn().Msg("history kept in memory only")
	}
	if nonces == nil {
		nonces = store.NewMemoryNonces()
	}

	if cfg.DefaultRoom != "" {
		if _, err := store.EnsureRoom(ctx, data, cfg.DefaultRoom, cfg.DefaultRoom, "Default room"); err != nil {
			logger.Fatal().Err(err).Str("room", cfg.DefaultRoom).Msg("default room setup failed")
		}
	}

	// Chat core
	catalog := chat.NewRoomCatalog(data, cfg.AutoCreateRooms)
	recorder := chat.NewRecorder(history, data, cfg.RecorderQueue, logger.With().Str("component", "recorder").Logger())
	hub := chat.NewHub(chat.Config{
		SendBuffer:      cfg.SendBuffer,
		MaxMessageBytes: cfg.MaxMessageBytes,
	}, catalog, recorder, logger)

	auth := middleware.NewAuthMiddleware(data, nonces)
	h := handlers.NewHandler(handlers.Deps{
		Config:  cfg,
		Data:    data,
		History: history,
		Redis:   redisStore,
		Hub:     hub,
		Catalog: catalog,
		Auth:    auth,
		Logger:  logger,
	})

	// Create router
	router := api.NewRouter(logger, cfg, h, auth, redisStore)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Runs until Stop, after every connection is gone.
	g.Go(func() error {
		return recorder.Run(context.Background())
	})

	g.Go(func() error {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting ChatWave server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server...")

		// Graceful shutdown with 30 second timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)

		// Hijacked websocket connections are not tracked by the server.
		hub.Registry.Each(hub.Disconnect)
		recorder.Stop()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return
	}

	logger.Info().Msg("server stopped")
}
