package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/streamlytics/internal/analytics"
	"github.com/patrickwarner/streamlytics/internal/api"
	"github.com/patrickwarner/streamlytics/internal/config"
	"github.com/patrickwarner/streamlytics/internal/geoip"
	"github.com/patrickwarner/streamlytics/internal/observability"
	"github.com/patrickwarner/streamlytics/internal/probe"
	"github.com/patrickwarner/streamlytics/internal/settings"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	metricsRegistry := observability.NewPrometheusRegistry()

	env, err := probe.Open(cfg)
	if err != nil {
		return fmt.Errorf("load probe fixture: %w", err)
	}

	store, err := settings.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer store.Close()

	traits, err := settings.LoadTraits(ctx, store)
	if err != nil {
		return err
	}

	dispatcher, closeDispatcher, err := analytics.OpenDispatcher(cfg, metricsRegistry, logger)
	if err != nil {
		return fmt.Errorf("failed to connect clickhouse: %w", err)
	}
	defer closeDispatcher()

	// The GeoIP database only enriches /v1/probe, so run without it.
	geoSvc, err := geoip.Init(cfg.GeoIPDB)
	if err != nil {
		logger.Warn("geoip disabled", zap.String("path", cfg.GeoIPDB), zap.Error(err))
		geoSvc = nil
	} else {
		defer func() { _ = geoSvc.Close() }()
	}

	client := analytics.NewClient(env, analytics.Options{
		CollectDeviceID: cfg.CollectDeviceID,
		Traits:          traits,
		Dispatcher:      dispatcher,
		Metrics:         metricsRegistry,
		Logger:          logger,
		DispatchTimeout: cfg.DispatchTimeout,
	})
	defer func() { _ = client.Close() }()

	if cfg.AdvertisingIDEnabled {
		adCtx, cancel := context.WithTimeout(ctx, cfg.AdvertisingIDTimeout)
		defer cancel()
		// Only fixture environments report an advertising id.
		task := client.AttachAdvertisingID(adCtx, analytics.AdvertisingIDProviderFor(env))
		defer task.Cancel()
	}

	srvDeps := api.NewServer(logger, client, store, geoSvc, metricsRegistry, cfg)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      srvDeps.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("analytics server running",
		zap.String("addr", addr),
		zap.String("settings_backend", cfg.SettingsBackend),
		zap.String("anonymous_id", traits.AnonymousID()))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
