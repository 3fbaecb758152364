package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/events"
	"github.com/driftwatch/driftwatch/internal/logging"
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
	logger.Info("Alerter service starting...",
		"version", Version, "commit", GitCommit, "build_time", BuildTime)

	if !cfg.Events.Enabled {
		return fmt.Errorf("event consumption requires events.enabled=true in configuration")
	}

	subject := cfg.Events.Subject
	if subject == "" {
		subject = events.DefaultSubject
	}

	logger.Info("Connecting to event queue", "type", cfg.Events.Type, "url", cfg.Events.URL)
	sub, err := events.NewSubscriber(cfg.Events)
	if err != nil {
		return fmt.Errorf("connect event queue: %w", err)
	}
	defer func() { _ = sub.Close() }()

	if err := sub.Subscribe(subject, alertHandler(logger)); err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	logger.Info("Alerter started", "subject", subject, "queue_type", cfg.Events.Type)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Received shutdown signal", "signal", sig.String())

	if err := sub.Unsubscribe(subject); err != nil {
		logger.Error("Failed to unsubscribe", "subject", subject, "error", err)
	}

	logger.Info("Alerter service stopped")
	return nil
}

// alertHandler decodes outlier events and emits one structured alert
// per flagged segment. A decode failure is returned so queue backends
// with redelivery can retry the message.
func alertHandler(logger *logging.Logger) events.MessageHandler {
	return func(data []byte) error {
		event, err := events.UnmarshalOutlierEvent(data)
		if err != nil {
			logger.Error("Failed to decode outlier event", "error", err)
			return err
		}

		first, last := "", ""
		if len(event.Timestamps) > 0 {
			first = event.Timestamps[0].UTC().Format(time.RFC3339)
			last = event.Timestamps[len(event.Timestamps)-1].UTC().Format(time.RFC3339)
		}

		logger.Warn("Outliers detected",
			"run_id", event.RunID,
			"dataset", event.Dataset,
			"segment", event.Segment,
			"column", event.Column,
			"method", event.Method,
			"count", len(event.Timestamps),
			"first", first,
			"last", last,
		)
		return nil
	}
}
