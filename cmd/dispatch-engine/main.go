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

	"github.com/notfall/dispatch-engine/internal/api"
	"github.com/notfall/dispatch-engine/internal/config"
	"github.com/notfall/dispatch-engine/internal/dispatch"
	"github.com/notfall/dispatch-engine/internal/geo"
	"github.com/notfall/dispatch-engine/internal/matching"
	"github.com/notfall/dispatch-engine/internal/notify"
	"github.com/notfall/dispatch-engine/internal/policy"
	"github.com/notfall/dispatch-engine/internal/rl"
	"github.com/notfall/dispatch-engine/internal/scheduler"
	"github.com/notfall/dispatch-engine/internal/sla"
	"github.com/notfall/dispatch-engine/internal/storage"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting dispatch-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Load dispatch policy
	pol := policy.Default()
	if cfg.Policy.File != "" {
		pol, err = policy.LoadFromFile(cfg.Policy.File)
		if err != nil {
			slog.Error("failed to load dispatch policy", "error", err)
			os.Exit(1)
		}
	}

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Travel-time estimator, optionally backed by the Redis cache
	var estimator geo.Estimator = geo.NewHTTPProvider(cfg.Travel.BaseURL, cfg.Travel.APIKey, cfg.Travel.Timeout)
	var cached *geo.CachedEstimator
	if cfg.Redis.Enabled {
		cached, err = geo.NewCachedEstimator(estimator, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.CacheTTL)
		if err != nil {
			slog.Error("failed to create travel cache", "error", err)
			os.Exit(1)
		}
		estimator = cached
	}

	// Ranking engine
	adjuster, err := rl.NewAdjuster(rl.Config{
		NumStates:  pol.RL.NumStates,
		NumActions: pol.RL.NumActions,
		Alpha:      pol.RL.Alpha,
		Gamma:      pol.RL.Gamma,
		Epsilon:    pol.RL.Epsilon,
	})
	if err != nil {
		slog.Error("failed to create rl adjuster", "error", err)
		os.Exit(1)
	}

	extractor := matching.NewExtractor(estimator, pol.Ranking.Workers)
	engine, err := matching.NewEngine(extractor, adjuster, pol.Ranking.Weights)
	if err != nil {
		slog.Error("failed to create ranking engine", "error", err)
		os.Exit(1)
	}

	// Assignment and notifications
	roster := scheduler.NewRoster()
	assigner := scheduler.NewAssigner(roster, repo)
	notifier := notify.NewConnectionManager()

	// SLA monitoring
	monitor, err := sla.NewMonitor(pol.SLA.ComplianceThreshold, notifier, pol.Notifications.Retries, pol.RetryDelay())
	if err != nil {
		slog.Error("failed to create sla monitor", "error", err)
		os.Exit(1)
	}
	worker := sla.NewWorker(monitor, repo, pol.MonitorInterval())

	// Dispatch service
	service := dispatch.NewService(engine, roster, assigner, monitor, repo, notifier)
	if err := service.LoadRoster(initCtx); err != nil {
		slog.Error("failed to load roster", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start SLA worker
	worker.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, service, notifier)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if cached != nil {
		if err := cached.Close(); err != nil {
			slog.Error("travel cache close error", "error", err)
		}
	}

	if err := service.Close(); err != nil {
		slog.Error("service close error", "error", err)
	}

	slog.Info("dispatch-engine stopped")
}
