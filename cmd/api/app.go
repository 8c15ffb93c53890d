package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"salon-loyalty-api/internal/auth"
	"salon-loyalty-api/internal/cache"
	"salon-loyalty-api/internal/config"
	"salon-loyalty-api/internal/database"
	"salon-loyalty-api/internal/events"
	"salon-loyalty-api/internal/features"
	"salon-loyalty-api/internal/logging"
	"salon-loyalty-api/internal/metrics"
	"salon-loyalty-api/internal/service"
	"salon-loyalty-api/internal/tracing"
)

const cacheNamespace = "salon-loyalty"

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	db       *database.DB
	metrics  *metrics.Metrics
	tracer   *tracing.Tracer
	features *features.Manager
	svc      *service.Service

	closeCache func() error
}

func newApp(ctx context.Context, configFile string) (*app, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(cfg.Log, cfg.Tracing.ServiceName)

	tracer, err := tracing.Init(cfg.Tracing)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		tracer.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		metrics:    metrics.New(),
		tracer:     tracer,
		features:   features.FromConfig(cfg.Features),
		closeCache: func() error { return nil },
	}

	var codeCache cache.Cache = cache.NewInMemoryCache(nil)
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cacheNamespace)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, using in-memory cache")
		} else {
			codeCache = rc
			a.closeCache = rc.Close
		}
	}

	bus := events.NewManager(a.features.Enabled(features.EventHooks), logger)
	audit := events.LogSubscriber(logger.With().Str("component", "events").Logger())
	for _, t := range []events.EventType{
		events.EventCustomerRegistered,
		events.EventCustomerCheckedIn,
		events.EventRewardRedeemed,
		events.EventPointsAwarded,
	} {
		bus.Subscribe(t, audit)
	}

	authSvc := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	a.svc = service.NewService(db, authSvc, service.Options{
		Loyalty:  cfg.Loyalty,
		Logger:   logger,
		Metrics:  a.metrics,
		Tracer:   tracer,
		Features: a.features,
		Events:   bus,
		Cache:    codeCache,
	})
	return a, nil
}

func (a *app) Close() {
	a.svc.Shutdown()

	if err := a.closeCache(); err != nil {
		a.logger.Error().Err(err).Msg("error closing cache")
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error().Err(err).Msg("error closing database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("error shutting down tracer")
	}
}
