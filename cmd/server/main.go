package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atrium/internal/config"
	"atrium/internal/database/boltstore"
	"atrium/internal/database/sqlitestore"
	"atrium/internal/handlers"
	"atrium/internal/moderation"
	"atrium/internal/routing"
	"atrium/internal/tracing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Configure zerolog
	switch cfg.Log.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Use pretty console logging in development, JSON in production
	if cfg.Log.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	log.Info().Msg("Starting Atrium Moderation Service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize tracing
	tp, err := tracing.Init(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shut down tracer provider")
			}
		}()
	}

	// Open the moderation store
	var store moderation.Store
	switch cfg.Storage.Backend {
	case "bolt", "":
		bolt, err := boltstore.Open(boltstore.Options{Path: cfg.Storage.Path})
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("Failed to open database")
		}
		defer bolt.Close()
		store = bolt.ModerationStore()
	case "sqlite":
		db, err := sqlitestore.Open(cfg.Storage.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("Failed to open database")
		}
		defer db.Close()
		store = sqlitestore.NewModerationStore(db)
	default:
		log.Fatal().Str("backend", cfg.Storage.Backend).Msg("Unknown storage backend")
	}

	log.Info().
		Str("backend", cfg.Storage.Backend).
		Str("path", cfg.Storage.Path).
		Msg("Database opened")

	// Load the staff roster
	staff, err := moderation.NewStaff(cfg.Staff.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Staff.ConfigPath).Msg("Failed to load staff config")
	}
	if staff.IsEnabled() {
		log.Info().Int("staff", len(staff.ListStaff())).Msg("Staff roster loaded")
	} else {
		log.Warn().Msg("No staff config provided, staff endpoints disabled")
	}

	engine := moderation.NewEngine(store)

	h := handlers.New(engine, staff, store)

	handler := routing.SetupRouter(routing.Config{
		Handlers: h,
		Logger:   log.Logger,
	})

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handler,
	}

	go func() {
		log.Info().Str("address", cfg.Addr()).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
