package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/driftwatch/driftwatch/internal/catalog"
	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/events"
	"github.com/driftwatch/driftwatch/internal/logging"
	"github.com/driftwatch/driftwatch/internal/router"
	"github.com/driftwatch/driftwatch/internal/store"
	"github.com/driftwatch/driftwatch/internal/utils"
)

// Build metadata, injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	logging.SetGlobal(logger)
	logger.Info("Analyzer service starting...",
		"version", Version, "commit", GitCommit, "build_time", BuildTime)

	cat, err := catalog.New(cfg.Catalog)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = cat.Close() }()
	logger.Info("Dataset catalog ready", "type", cfg.Catalog.Type)

	st, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	logger.Info("Snapshot store ready",
		"data_dir", cfg.Store.DataDir, "compression", cfg.Store.Compression)

	publisher, err := connectPublisher(cfg, logger)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer func() { _ = publisher.Close() }()
	}

	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication disabled, all requests are allowed")
	}

	app := router.New(logger, cat, st, publisher, *cfg)

	listenErr := make(chan error, 1)
	go func() {
		addr := cfg.GetServerAddress()
		logger.Info("Server listening", "address", addr)
		listenErr <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-listenErr:
		return fmt.Errorf("server stopped: %w", err)
	case sig := <-quit:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), utils.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
	return nil
}

// connectPublisher dials the configured event backend, or returns nil
// when publishing is disabled.
func connectPublisher(cfg *config.Config, logger *logging.Logger) (events.Publisher, error) {
	if !cfg.Events.Enabled {
		logger.Info("Event publishing disabled")
		return nil, nil
	}

	logger.Info("Connecting to event queue", "type", cfg.Events.Type, "url", cfg.Events.URL)
	publisher, err := events.NewPublisher(cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("connect event queue: %w", err)
	}
	logger.Info("Event queue connection established", "subject", cfg.Events.Subject)
	return publisher, nil
}
