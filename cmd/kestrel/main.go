// Kestrel - Gas subscriber risk analysis engine.
// Copyright (c) 2026 open-utility
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/open-utility/kestrel/internal/api"
	"github.com/open-utility/kestrel/internal/bus"
	"github.com/open-utility/kestrel/internal/cache"
	"github.com/open-utility/kestrel/internal/domain"
	"github.com/open-utility/kestrel/internal/engine"
	"github.com/open-utility/kestrel/internal/geocode"
	"github.com/open-utility/kestrel/internal/hdd"
	"github.com/open-utility/kestrel/internal/report"
	"github.com/open-utility/kestrel/internal/repository"
	"github.com/open-utility/kestrel/internal/rules"
	"github.com/open-utility/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize custom rule engine
	ruleEngine, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Load rules from database (no hardcoded defaults - configure via API)
	if err := loadRulesFromDatabase(ctx, repo, ruleEngine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", ruleEngine.RulesCount())

	// HDD provider: static climate normals behind a cache
	hddProvider := hdd.NewCachedProvider(hdd.NewStaticProvider(), cacheImpl, 24*time.Hour)

	// External collaborators
	geocoder := geocode.NewClient(cfg.Geocode, cacheImpl)
	reporter := report.NewGenerator(cfg.Report)

	// Analysis engine
	eng := engine.New(cfg, repo, busImpl, ruleEngine, hddProvider)
	eng.SetRegionSource(hdd.DistrictRegions)

	// Alert worker persists critical-band alerts from the bus
	alertWorker := worker.NewAlertWorker(busImpl, repo)
	if err := alertWorker.Start(); err != nil {
		slog.Error("failed to start alert worker", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, eng, repo, cacheImpl, geocoder, reporter, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop alert worker first
	if err := alertWorker.Stop(); err != nil {
		slog.Error("failed to stop alert worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// loadRulesFromDatabase loads custom rules from the database into the engine.
// All rules must be configured via POST /rules API - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListCustomRules(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no rules in database - configure via POST /rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  KESTREL - Subscriber Risk Analysis Engine")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /sessions                        - Load a dataset for analysis")
	fmt.Println("    GET  /sessions                        - List live sessions")
	fmt.Println("    GET  /sessions/{id}/results           - Ranked risk scores")
	fmt.Println("    GET  /sessions/{id}/stats             - Per-level counts")
	fmt.Println("    POST /sessions/{id}/analyze/{module}  - Run an analyzer pass")
	fmt.Println("    GET  /sessions/{id}/building-risks    - Same-building comparison")
	fmt.Println("    GET  /sessions/{id}/weather-risks     - Weather-normalized comparison")
	fmt.Println("    GET  /sessions/{id}/export            - Flattened export rows")
	fmt.Println("    POST /sessions/{id}/report            - Natural-language summary")
	fmt.Println("    POST /geocode                         - Reverse geocode a coordinate")
	fmt.Println("    GET  /rules                           - List custom rules")
	fmt.Println("    POST /rules                           - Create a custom rule")
	fmt.Println("    POST /rules/reload                    - Hot-reload rules from database")
	fmt.Println("    GET  /health                          - Health check")
	fmt.Println()
}
