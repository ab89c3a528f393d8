package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	pamqp "pocket/internal/amqp"
	"pocket/internal/config"
	applog "pocket/internal/log"
)

// The alert worker is the consuming end of the budget alert queue. It logs
// each alert and sends the acknowledgment that unblocks the publisher, which
// is where a push-notification or mail integration would plug in.
func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting alert worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	client, err := pamqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	err = client.ConsumeAlerts(ctx, func(msg *pamqp.AlertMessage) error {
		logger.Info("Budget alert",
			applog.FieldAlertKind, string(msg.Kind),
			"title", msg.Title,
			"message", msg.Message,
			"sent_at", msg.Timestamp)
		return nil
	})
	if err != nil && err != context.Canceled {
		logger.Error("Alert consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Alert worker stopped gracefully")
}
