// Onroad - Two-wheeler on-road pricing that deploys in 60 seconds.
// Copyright (c) 2026 dealerstack
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

	"github.com/dealerstack/onroad/internal/activity"
	"github.com/dealerstack/onroad/internal/api"
	"github.com/dealerstack/onroad/internal/bus"
	"github.com/dealerstack/onroad/internal/cache"
	"github.com/dealerstack/onroad/internal/domain"
	"github.com/dealerstack/onroad/internal/offers"
	"github.com/dealerstack/onroad/internal/quote"
	"github.com/dealerstack/onroad/internal/repository"
	"github.com/dealerstack/onroad/internal/worker"
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
	if os.Getenv("ONROAD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting onroad",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("ONROAD_TIER") == "pro" {
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

	// Initialize Activity Service (repeat-enquiry counting)
	activitySvc := activity.NewService(repo, cacheImpl)
	slog.Info("activity service initialized")

	// Initialize Offer Engine with activity getter
	engine, err := offers.NewEngine(activitySvc.GetActivityGetter(), 100)
	if err != nil {
		slog.Error("failed to initialize offer engine", "error", err)
		os.Exit(1)
	}

	// Tenant list from environment (comma-separated)
	tenantIDs := []string{}
	if envTenants := os.Getenv("ONROAD_TENANTS"); envTenants != "" {
		for _, id := range strings.Split(envTenants, ",") {
			if id = strings.TrimSpace(id); id != "" {
				tenantIDs = append(tenantIDs, id)
			}
		}
	}

	// Load offers from database (no hardcoded defaults - configure via API)
	if err := loadOffersFromDatabase(ctx, repo, engine, tenantIDs); err != nil {
		slog.Error("failed to load offers", "error", err)
		os.Exit(1)
	}
	slog.Info("offer engine initialized", "offers_count", engine.OffersCount())

	// Initialize Quote Service
	quoteSvc := quote.NewService(repo, cacheImpl, busImpl, engine, activitySvc)
	slog.Info("quote service initialized")

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("ONROAD_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, quoteSvc)

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, quoteSvc, engine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("onroad is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("onroad shutdown complete")
}

// loadOffersFromDatabase loads each configured tenant's offers into the
// engine. Offers are tenant-scoped; without a tenant list the engine
// starts empty and offers load via POST /offers/reload.
func loadOffersFromDatabase(ctx context.Context, repo domain.Repository, engine *offers.Engine, tenantIDs []string) error {
	if len(tenantIDs) == 0 {
		slog.Info("no tenants configured - load offers via POST /offers/reload")
		return nil
	}

	total := 0
	for _, tenantID := range tenantIDs {
		dbOffers, err := repo.ListOfferConfigs(ctx, tenantID)
		if err != nil {
			slog.Warn("failed to list offers from database", "tenant_id", tenantID, "error", err)
			continue
		}
		if len(dbOffers) == 0 {
			continue
		}
		if err := engine.LoadOffers(dbOffers); err != nil {
			return err
		}
		total += len(dbOffers)
	}

	if total > 0 {
		slog.Info("offers loaded from database", "count", total)
	} else {
		slog.Info("no offers in database - configure via POST /offers API")
	}
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🛵 ONROAD                   ║")
	fmt.Println("  ║      On-Road Pricing Engine               ║")
	fmt.Println("  ║      Every rupee accounted for.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /quote                    - Price a vehicle on-road")
	fmt.Println("    POST /quote/async              - Enqueue a quote for the worker")
	fmt.Println("    GET  /snapshots/{id}           - Get price snapshot by ID")
	fmt.Println("    GET  /leads/{id}/snapshots     - List a lead's snapshots")
	fmt.Println("    GET  /tax/classification       - HSN/GST classification")
	fmt.Println("    GET  /emi                      - EMI quote")
	fmt.Println("    GET  /coins/quote              - Loyalty coin pricing")
	fmt.Println("    GET  /rules/registration       - List registration rules")
	fmt.Println("    POST /rules/registration       - Create a registration rule")
	fmt.Println("    GET  /rules/insurance          - List insurance rules")
	fmt.Println("    POST /rules/insurance          - Create an insurance rule")
	fmt.Println("    GET  /offers                   - List loaded offers")
	fmt.Println("    POST /offers                   - Create a dealer offer")
	fmt.Println("    POST /offers/reload            - Hot-reload offers from database")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}
