package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"macfinder/infra/assets"
	"macfinder/pkg/db"
	"macfinder/pkg/render"
	"macfinder/pkg/telemetry"
	"macfinder/services/lookup"
	"macfinder/services/lookup/internal/config"
)

const serviceName = "macfinder"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger := telemetry.NewLogger(serviceName, cfg.LogLevel, cfg.LogFormat, os.Stdout)
	log.Logger = logger

	shutdownTelemetry, tracing, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	store, err := db.Open(ctx, cfg.DBDSN, db.ReadOnly())
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("close database")
		}
	}()

	if err := db.Ping(ctx, store); err != nil {
		// Lookups report the failure per request; the service keeps serving.
		logger.Warn().Err(err).Str("dialect", string(store.Dialect())).Msg("database not reachable at startup")
	}

	svc, err := lookup.NewService(store, lookup.Config{
		ExcludedPorts: cfg.ExcludedPorts,
		QueryTimeout:  cfg.QueryTimeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init lookup service")
	}

	renderer, err := render.New(render.WithAssets(assets.Files, "static"))
	if err != nil {
		logger.Fatal().Err(err).Msg("init renderer")
	}

	api, err := lookup.New(svc, renderer, lookup.HTTPConfig{
		PageTitle:      cfg.PageTitle,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Middleware:     tracing,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init api")
	}

	handler, err := api.Routes()
	if err != nil {
		logger.Fatal().Err(err).Msg("build routes")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("starting macfinder")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
}
