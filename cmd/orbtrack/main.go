package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/orbtrack/internal/api"
	"github.com/star/orbtrack/internal/auth"
	"github.com/star/orbtrack/internal/catalog"
	"github.com/star/orbtrack/internal/config"
	"github.com/star/orbtrack/internal/geocode"
	"github.com/star/orbtrack/internal/geometry"
	"github.com/star/orbtrack/internal/groups"
	"github.com/star/orbtrack/internal/observability"
	"github.com/star/orbtrack/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "config file (default $ORBTRACK_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, os.Stderr, logger)
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}
	defer observability.Shutdown(context.Background(), shutdownTracing, logger)

	var geocoder geocode.Geocoder
	if cfg.Geocoding {
		offline, err := geocode.NewOffline()
		if err != nil {
			logger.Warn("geocoding unavailable, locations disabled", "error", err)
		} else {
			geocoder = offline
		}
	}

	var station *geometry.GroundStation
	if sc := cfg.GroundStation; sc.Enabled() {
		name := sc.Name
		if name == "" {
			name = geocode.PlaceName(geocoder, sc.Lat, sc.Lon, "Ground station")
		}
		station, err = geometry.NewGroundStation(name, sc.Position())
		if err != nil {
			logger.Error("invalid ground station", "error", err)
			os.Exit(1)
		}
		logger.Info("ground station configured",
			"name", station.Name,
			"lat", station.Position.Lat,
			"lon", station.Position.Lon,
			"alt_km", station.Position.Alt,
		)
	}

	cache := catalog.NewCache(cfg.Cache.Dir, cfg.Cache.Lifetime)
	fetcher := catalog.NewFetcher(logger,
		catalog.WithBaseURL(cfg.Catalog.URL),
		catalog.WithTimeout(cfg.Catalog.Timeout),
		catalog.WithRateLimit(cfg.Catalog.RatePerSecond, cfg.Catalog.Burst),
	)
	loader := catalog.NewLoader(cache, fetcher, logger, catalog.WithStaleFallback(cfg.Cache.AllowStale))

	pipeline, err := groups.New(cfg.Groups, loader, logger, groups.WithRefreshInterval(cfg.Cache.Lifetime))
	if err != nil {
		logger.Error("invalid group configuration", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	logger.Info("catalog config",
		"url", cfg.Catalog.URL,
		"cache_dir", cache.Dir(),
		"cache_lifetime", cfg.Cache.Lifetime.String(),
		"allow_stale", cfg.Cache.AllowStale,
		"groups", len(cfg.Groups),
	)

	srv := api.NewServer(api.Config{
		Addr:          cfg.HTTP.Addr,
		Auth:          auth.Config{Token: cfg.Auth.Token},
		TrustProxy:    cfg.HTTP.TrustProxy,
		RatePerSecond: cfg.HTTP.RatePerSecond,
		Burst:         cfg.HTTP.Burst,
		Workers:       cfg.Workers,
		Station:       station,
		Geocoder:      geocoder,
		Stream: stream.Config{
			MaxConcurrentPerIP: cfg.Stream.MaxPerClient,
			KeepaliveInterval:  cfg.Stream.Keepalive,
			SnapshotInterval:   cfg.Stream.Interval,
		},
		ReadyChecks: []func() error{cache.Check},
	}, pipeline, logger)

	go func() {
		if err := pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("group pipeline stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("starting server", "addr", cfg.HTTP.Addr, "auth_enabled", cfg.Auth.Token != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	// Closing the pipeline ends open event streams so Shutdown can drain.
	pipeline.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
