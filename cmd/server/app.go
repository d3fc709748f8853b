package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"scenecast-backend/internal/config"
	"scenecast-backend/internal/database"
	"scenecast-backend/internal/orchestrator"
	"scenecast-backend/internal/providers"
	"scenecast-backend/internal/realtime"
	"scenecast-backend/internal/storage"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	store      *database.Store
	hub        *realtime.Hub
	orch       *orchestrator.Orchestrator
	reconciler *orchestrator.Reconciler
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	store, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}

	mirror, err := storage.New(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize media mirror: %w", err)
	}
	if mirror == nil {
		logger.Info().Msg("media mirror disabled, provider video urls are stored as-is")
	} else {
		logger.Info().Str("backend", cfg.MirrorBackend).Msg("media mirror enabled")
	}

	registry := providers.NewRegistry(
		providers.NewRunwayClient(cfg.RunwayBaseURL, cfg.RunwayAPIKey, cfg.RunwayVersion, cfg.ProviderTimeout),
		providers.NewPikaClient(cfg.PikaBaseURL, cfg.PikaAPIKey, cfg.ProviderTimeout),
	)
	if cfg.RunwayAPIKey == "" {
		logger.Warn().Msg("RUNWAY_API_KEY not set, runway requests will be rejected")
	}
	if cfg.PikaAPIKey == "" {
		logger.Warn().Msg("PIKA_API_KEY not set, pika requests will be rejected")
	}

	hub := realtime.NewHub(32)
	orch := orchestrator.New(store, registry, mirror, hub, orchestrator.OptionsFromConfig(cfg), logger)
	reconciler, err := orchestrator.NewReconciler(orch)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		hub:        hub,
		orch:       orch,
		reconciler: reconciler,
	}, nil
}

func (a *app) Close() {
	a.reconciler.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("failed to close database")
	}
}
