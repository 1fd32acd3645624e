// Harrier - Ensemble anomaly detection for financial transactions.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/detector"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/features"
	"github.com/opensource-finance/harrier/internal/monitor"
	"github.com/opensource-finance/harrier/internal/reasons"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/worker"
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
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HARRIER_TIER") == "pro" {
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

	// Initialize Feature Engineer
	engineer := features.NewEngineer(cfg.Features)
	slog.Info("feature engineer initialized",
		"rolling_windows", cfg.Features.RollingWindows,
		"ema_spans", cfg.Features.EMASpans,
	)

	// Initialize diagnostic reason engine with built-in rules
	explain, err := reasons.NewDefaultEngine()
	if err != nil {
		slog.Error("failed to initialize reason engine", "error", err)
		os.Exit(1)
	}
	slog.Info("reason engine initialized", "rules_count", explain.RuleCount())

	// Initialize Ensemble Detector
	ensemble, err := detector.NewEnsemble(cfg.Detector, explain)
	if err != nil {
		slog.Error("failed to initialize ensemble detector", "error", err)
		os.Exit(1)
	}

	// Restore a previously trained model bundle if one exists
	modelPath := os.Getenv("HARRIER_MODEL_PATH")
	if modelPath == "" {
		modelPath = "./harrier-models.bin"
	}
	if err := ensemble.Load(modelPath); err != nil {
		slog.Error("failed to load model bundle", "error", err)
		os.Exit(1)
	}
	slog.Info("ensemble detector initialized",
		"contamination", cfg.Detector.Contamination,
		"live_models", ensemble.LiveModels(),
	)

	// Initialize Model Monitor
	mon := monitor.New(cfg.Monitor)
	slog.Info("model monitor initialized")

	// Initialize async Worker
	asyncWorker := worker.NewWorker(busImpl, repo, cacheImpl, engineer, ensemble, mon)

	tenantIDs := []string{"default"}
	if envTenants := os.Getenv("HARRIER_TENANTS"); envTenants != "" {
		tenantIDs = strings.Split(envTenants, ",")
	}

	workerCfg := worker.Config{
		TenantIDs: tenantIDs,
		Method:    domain.EnsembleVoting,
	}
	if m := os.Getenv("HARRIER_ENSEMBLE_METHOD"); m != "" {
		workerCfg.Method = domain.EnsembleMethod(m)
	}

	if err := asyncWorker.Start(workerCfg); err != nil {
		slog.Error("failed to start async worker", "error", err)
	}

	// Initialize operational server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, ensemble, asyncWorker, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop async worker", "error", err)
	}

	// Persist trained models for the next start
	if len(ensemble.LiveModels()) > 0 {
		if err := ensemble.Save(modelPath); err != nil {
			slog.Error("failed to save model bundle", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                 HARRIER")
	fmt.Println("      Ensemble Anomaly Detection Engine")
	fmt.Println("       Four models. One verdict.")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET /healthz  - Liveness and dependency health")
	fmt.Println("    GET /readyz   - Readiness (trained models present)")
	fmt.Println("    GET /status   - Live models, metrics, worker state")
	fmt.Println()
}
