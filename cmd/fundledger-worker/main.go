package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fundledger/internal/amqp"
	"fundledger/internal/config"
	applog "fundledger/internal/log"
	"fundledger/internal/service"
	"fundledger/internal/sheets"
	"fundledger/internal/storage"
	"fundledger/internal/storage/postgres"
	"fundledger/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting fundledger-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var store service.Store
	var err error
	switch cfg.DataBackend {
	case "postgres":
		store, err = postgres.NewRepository(context.Background(), cfg.PostgresURL)
	default:
		store, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	}
	if err != nil {
		logger.Error("Failed to initialize store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	// Spreadsheet mirror is optional; without it the worker only writes
	// the activity feed.
	var mirror worker.SheetMirror
	if cfg.SheetsEnabled() {
		m, err := sheets.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize sheet mirror", "error", err)
			os.Exit(1)
		}
		logger.Info("Sheet mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		mirror = m
	} else {
		logger.Info("Sheet mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	feedWorker := worker.NewFeedWorker(store, mirror)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqp.ConsumeWithReconnect(gctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			func(msg *amqp.LedgerEventMessage) error {
				return feedWorker.HandleLedgerEvent(gctx, msg)
			})
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
			return nil
		case <-gctx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete")
}
