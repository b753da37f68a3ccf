// Package main is the entry point for the botbridge control panel bridge.
// It wires the snapshot cache, bot liveness client, and realtime fanout
// behind a single HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/soundbridgehq/botbridge/internal/authgate"
	"github.com/soundbridgehq/botbridge/internal/botclient"
	"github.com/soundbridgehq/botbridge/internal/config"
	"github.com/soundbridgehq/botbridge/internal/fanout"
	"github.com/soundbridgehq/botbridge/internal/httpapi"
	"github.com/soundbridgehq/botbridge/internal/queuecache"
	"github.com/soundbridgehq/botbridge/internal/ratelimit"
	"github.com/soundbridgehq/botbridge/internal/store"
	"github.com/soundbridgehq/botbridge/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		// Sync errors on stdout/stderr are expected and can be safely ignored
		// for non-syncable file descriptors (pipes, terminals, etc.)
		_ = log.Sync()
	}()

	log.Info("starting botbridge",
		zap.String("environment", cfg.Server.Env),
		zap.String("http_port", cfg.Server.HTTPPort),
	)

	// Initialize database connection
	db, err := store.NewDB(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := runMigrations(db, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup job for expired snapshots
	go db.StartCleanupJob(ctx, 10*time.Minute)

	// Initialize realtime fanout hub
	hub := fanout.NewHub(log, cfg.Fanout.BufferSize, cfg.Fanout.Enabled)

	// Initialize snapshot cache backed by the store, with fanout notifications
	cache := queuecache.NewCache(db, db, hub, log)

	// Initialize bot liveness client
	bot := botclient.NewClient(cfg.Bot, log)

	// Initialize authorization gate
	gate := authgate.NewGate(cfg.Security.AuthBypass, db, log)

	// Initialize rate limiter and prune idle clients periodically
	rateLimiter := ratelimit.NewClientLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, log)
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rateLimiter.Prune(30 * time.Minute)
			}
		}
	}()

	// Initialize HTTP server
	handlers := httpapi.NewHandlers(gate, cache, bot, hub, db, cfg.Security, log)
	httpServer := httpapi.NewServer(handlers, cfg.Server.HTTPPort, rateLimiter, log)

	httpErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(); err != nil {
			httpErrChan <- err
		}
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-httpErrChan:
		log.Fatal("HTTP server error", zap.Error(err))
	case sig := <-sigChan:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	// Graceful shutdown
	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server gracefully", zap.Error(err))
	}

	hub.Shutdown()

	log.Info("shut down successfully")
}

// runMigrations runs database migrations using golang-migrate library
func runMigrations(db *store.DB, log *zap.Logger) error {
	log.Info("running database migrations")

	// Path to migrations directory (relative to binary execution location)
	migrationsPath := "internal/store/migrations"

	if err := db.RunMigrations(migrationsPath); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database migrations completed successfully")
	return nil
}
