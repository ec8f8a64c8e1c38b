package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/hearth/internal/api"
	"github.com/MikeSquared-Agency/hearth/internal/catalog"
	"github.com/MikeSquared-Agency/hearth/internal/config"
	"github.com/MikeSquared-Agency/hearth/internal/conversation"
	"github.com/MikeSquared-Agency/hearth/internal/engine"
	"github.com/MikeSquared-Agency/hearth/internal/events"
	"github.com/MikeSquared-Agency/hearth/internal/interview"
	"github.com/MikeSquared-Agency/hearth/internal/nlu"
	"github.com/MikeSquared-Agency/hearth/internal/session"
	"github.com/MikeSquared-Agency/hearth/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the survey HTTP service",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := config.Load()
	logger := slog.Default()

	logger.Info("hearth starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if cfg.AnthropicAPIKey == "" {
		logger.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	llm := nlu.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	logger.Info("model client ready", "model", cfg.AnthropicModel)

	// NATS is optional; without it lifecycle events are simply not emitted.
	var pub *events.Publisher
	if cfg.NatsURL != "" {
		pub, err = events.Connect(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		logger.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		logger.Warn("NATS not configured — running without event publishing")
	}

	// One catalog feeds both the validation engine and the prompt: the
	// seeded table when reachable, the built-in rows otherwise.
	defaults, err := db.ListDefaults(ctx)
	if err != nil || len(defaults) == 0 {
		logger.Warn("appliance defaults unavailable from database, using built-in seed", "error", err)
		defaults = catalog.Seed()
	}

	tracker := session.New(db, logger)
	log := conversation.New(db, logger)
	eng := engine.New(db, catalog.NewStaticFrom(defaults), tracker, logger)

	orch := interview.New(interview.Config{
		Store:        db,
		Log:          log,
		Tracker:      tracker,
		Engine:       eng,
		Generator:    llm,
		Publisher:    pub,
		Defaults:     defaults,
		HistoryLimit: cfg.HistoryLimit,
	}, logger)

	srv := api.NewServer(cfg.Port, orch, log, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	logger.Info("hearth ready", "port", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")
	cancel()
	logger.Info("hearth stopped")
}
