package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	pamqp "pocket/internal/amqp"
	"pocket/internal/budget"
	"pocket/internal/config"
	apphttp "pocket/internal/http"
	"pocket/internal/ledger"
	"pocket/internal/ledger/memory"
	applog "pocket/internal/log"
	"pocket/internal/report/google"
	"pocket/internal/services"
	"pocket/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentApp})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var (
		txStore     ledger.TransactionStore
		budgetStore ledger.BudgetStore
		catStore    ledger.CategoryStore
	)

	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		txStore, budgetStore, catStore = repo, repo, repo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		store := memory.New()
		txStore, budgetStore, catStore = store, store, store
		logger.Info("Initialized memory backend")
	}

	// Alert delivery: AMQP when configured, in-process otherwise.
	var notifier budget.Notifier
	if cfg.AMQPURL != "" {
		client, err := pamqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, falling back to in-process alerts", "error", err)
			notifier = memory.NewNotifier()
		} else {
			defer client.Close()
			notifier = client
			logger.Info("Initialized AMQP alert transport", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		notifier = memory.NewNotifier()
	}

	budgetSvc := services.NewBudgetService(budgetStore, txStore, budget.NewDispatcher(notifier))
	txSvc := services.NewTransactionService(txStore, budgetSvc)
	catSvc := services.NewCategoryService(catStore, txStore, txSvc)

	opts := apphttp.Options{
		CacheSize: cfg.StatsCacheSize,
		CacheTTL:  cfg.StatsCacheTTL,
	}
	if cfg.GoogleSpreadsheetID != "" {
		exporter, err := google.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize report exporter", "error", err)
			os.Exit(1)
		}
		opts.Exporter = exporter
		logger.Info("Report exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Report export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, txSvc, catSvc, budgetSvc, opts)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting pocket server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
