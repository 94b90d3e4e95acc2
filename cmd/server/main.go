package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"brettonwoods/internal/app"
	"brettonwoods/internal/catalog"
	"brettonwoods/internal/config"
	"brettonwoods/internal/store"
	"brettonwoods/internal/store/memory"
	"brettonwoods/internal/store/relational"
	httpTransport "brettonwoods/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up logger
	var logger *slog.Logger
	logOpts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, logOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, logOpts))
	}

	slog.SetDefault(logger)

	logger.Info("starting bretton woods conference server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
	)

	agenda, err := catalog.LoadOrDefault(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	// Create notification hub
	hub := app.NewHub(logger, app.DefaultRoomSweepInterval)
	defer hub.Close()

	engine := app.NewEngine(app.Dependencies{
		Store:      st,
		Catalog:    agenda,
		Notifier:   hub,
		Logger:     logger,
		CodeLength: cfg.Game.CodeLength,
	})

	// Create HTTP server
	server := httpTransport.NewServer(cfg, engine, hub, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		engine.RunCleanup(gctx, cfg.Game.CleanupInterval, cfg.Game.StaleGameTimeout)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "postgres":
		return relational.Open(cfg.Store.Driver, cfg.Store.DSN, logger)
	default:
		return memory.New(cfg.Store.SnapshotPath, logger)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
