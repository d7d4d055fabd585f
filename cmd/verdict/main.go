// Verdict - Explainable decisions for every application.
// Copyright (c) 2025 explainable.finance
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

	"github.com/explainable-finance/verdict/internal/api"
	"github.com/explainable-finance/verdict/internal/bus"
	"github.com/explainable-finance/verdict/internal/cache"
	"github.com/explainable-finance/verdict/internal/domain"
	"github.com/explainable-finance/verdict/internal/engine"
	"github.com/explainable-finance/verdict/internal/llm"
	"github.com/explainable-finance/verdict/internal/repository"
	"github.com/explainable-finance/verdict/internal/rules"
	"github.com/explainable-finance/verdict/internal/worker"
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
	if os.Getenv("VERDICT_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting verdict",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("VERDICT_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"model", cfg.Model.Enabled,
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

	// Initialize Policy Engine
	policyEngine, err := rules.NewPolicyEngine()
	if err != nil {
		slog.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}
	defer policyEngine.Close()

	// Load policies from database (no hardcoded defaults - configure via API)
	if err := loadPoliciesFromDatabase(ctx, repo, policyEngine); err != nil {
		slog.Error("failed to load policies", "error", err)
		os.Exit(1)
	}
	slog.Info("policy engine initialized", "policies_count", policyEngine.Count())

	// Initialize the optional remote model source
	var remote engine.RemoteSource
	if cfg.Model.Enabled {
		client := llm.NewClient(cfg.Model, logger)
		if err := client.Ping(ctx); err != nil {
			slog.Warn("model endpoint unreachable at startup, continuing anyway",
				"url", cfg.Model.URL,
				"error", err,
			)
		}
		remote = client
		slog.Info("remote model source initialized",
			"url", cfg.Model.URL,
			"model", cfg.Model.Model,
		)
	}

	// Initialize Evaluator
	evaluator := engine.New(engine.Options{
		Cache:      cacheImpl,
		CacheTTL:   cfg.Engine.CacheTTL,
		Policies:   policyEngine,
		Remote:     remote,
		Context:    repo,
		BatchWidth: cfg.Engine.BatchWidth,
		Logger:     logger,
	})
	slog.Info("evaluator initialized", "batch_width", cfg.Engine.BatchWidth)

	// Initialize async Worker
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("VERDICT_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, evaluator)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, evaluator, policyEngine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("verdict is ready",
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

	slog.Info("verdict shutdown complete")
}

// applyEnvOverrides layers VERDICT_* environment settings over the tier
// defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if path := os.Getenv("VERDICT_SQLITE_PATH"); path != "" {
		cfg.Repository.SQLitePath = path
	}
	if url := os.Getenv("VERDICT_MODEL_URL"); url != "" {
		cfg.Model.URL = url
	}
	if model := os.Getenv("VERDICT_MODEL_NAME"); model != "" {
		cfg.Model.Model = model
	}
	if os.Getenv("VERDICT_MODEL_ENABLED") == "true" {
		cfg.Model.Enabled = true
	}
}

// loadPoliciesFromDatabase compiles stored policies into the engine.
// All policies are configured via POST /policies - no hardcoded defaults.
func loadPoliciesFromDatabase(ctx context.Context, repo domain.Repository, policyEngine *rules.PolicyEngine) error {
	policies, err := repo.ListPolicies(ctx, "")
	if err != nil {
		slog.Warn("failed to list policies from database", "error", err)
		return nil // Start with empty policies - they can be added via API
	}

	if len(policies) > 0 {
		slog.Info("loading policies from database", "count", len(policies))
		return policyEngine.Reload(policies)
	}

	slog.Info("no policies in database - configure via POST /policies API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               ⚖️  VERDICT                  ║")
	fmt.Println("  ║     Explainable Decision Engine           ║")
	fmt.Println("  ║      Every decision, explained.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /decision/{domain}         - Evaluate one applicant")
	fmt.Println("    POST /decision/{domain}/batch   - Evaluate a batch")
	fmt.Println("    POST /decision/{domain}/upload  - Evaluate an uploaded file")
	fmt.Println("    POST /applications              - Submit for review workflow")
	fmt.Println("    GET  /applications              - List applications")
	fmt.Println("    POST /applications/{id}/review  - Record a human decision")
	fmt.Println("    PUT  /applications/{id}/explanation - Edit an explanation")
	fmt.Println("    GET  /policies                  - List policies")
	fmt.Println("    POST /policies                  - Create a policy")
	fmt.Println("    POST /policies/reload           - Hot-reload policies")
	fmt.Println("    GET  /audit-log                 - Full decision audit trail")
	fmt.Println("    GET  /health                    - Health check")
	fmt.Println()
}
