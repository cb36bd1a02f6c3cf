package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mcdev12/estimate/go/internal/config"
	"github.com/mcdev12/estimate/go/internal/room/coordinator"
	"github.com/mcdev12/estimate/go/internal/room/events"
	"github.com/mcdev12/estimate/go/internal/room/gateway"
	"github.com/mcdev12/estimate/go/internal/room/storage"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, db := setupStore(ctx, cfg)
	if db != nil {
		defer db.Close()
	}

	publisher := setupPublisher(ctx, cfg)
	defer publisher.Close()

	hubConfig := coordinator.DefaultConfig()
	hubConfig.AlarmInterval = cfg.Room.AlarmInterval
	hubConfig.IdleRetention = cfg.Room.IdleRetention
	hubConfig.EndedGrace = cfg.Room.EndedGrace
	hubConfig.InboxSize = cfg.Room.InboxSize
	if err := hubConfig.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid room configuration")
	}
	hub := coordinator.NewHub(hubConfig, store, clockwork.NewRealClock(), publisher)

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.ConnectionConfig.RateLimit = rate.Limit(cfg.WebSocket.RateLimit)
	gatewayConfig.ConnectionConfig.RateBurst = cfg.WebSocket.RateBurst
	gatewayConfig.ConnectionConfig.SendBufferSize = cfg.WebSocket.SendBufferSize
	gatewayConfig.ConnectionConfig.MaxMessageSize = cfg.WebSocket.MaxMessageSize
	gatewayConfig.ConnectionConfig.CheckOrigin = gateway.OriginChecker(cfg.AllowedOrigins)

	gatewayService := gateway.NewService(gatewayConfig, hub)
	server := setupServer(cfg, gatewayService)

	log.Info().
		Str("store", cfg.Store).
		Str("nats_url", cfg.NatsURL).
		Str("port", cfg.Port).
		Msg("starting room gateway")

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Close room connections first; hijacked WebSockets are not tracked by the server.
	if err := gatewayService.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("gateway shutdown failed")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("room gateway shutdown complete")
}

func setupStore(ctx context.Context, cfg config.Config) (storage.Store, *sql.DB) {
	if cfg.Store != config.StorePostgres {
		log.Warn().Msg("using in-memory room store, rooms will not survive a restart")
		return storage.NewMemoryStore(), nil
	}

	db, err := storage.OpenPostgres(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Str("database", cfg.Database.Name()).Msg("failed to connect to database")
	}

	if err := storage.CreateSchema(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to create schema")
	}
	store := storage.NewPostgresStore(db)
	log.Info().Str("database", cfg.Database.Name()).Msg("using postgres room store")
	return store, db
}

func setupPublisher(ctx context.Context, cfg config.Config) events.Publisher {
	if cfg.NatsURL == "" {
		return events.NopPublisher{}
	}

	jsConfig := events.DefaultJetStreamConfig()
	jsConfig.URL = cfg.NatsURL
	jsConfig.StreamName = cfg.RoomStream

	publisher, err := events.NewJetStreamPublisher(ctx, jsConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create room event publisher")
	}
	return events.NewMetricPublisher(publisher)
}
