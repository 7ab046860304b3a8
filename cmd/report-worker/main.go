package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"loanoffice/internal/amqp"
	"loanoffice/internal/category"
	"loanoffice/internal/cli"
	"loanoffice/internal/log"
	"loanoffice/internal/services"
	gsheet "loanoffice/internal/sheets/google"
	"loanoffice/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting report-worker")

	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("Report worker requires GOOGLE_SPREADSHEET_ID to be configured")
		os.Exit(1)
	}

	store := cli.InitStore(logger, cfg.SQLiteDBPath)
	defer store.Close()

	sheetsClient, err := gsheet.NewFromEnv(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer events.Close()
	} else {
		logger.Info("AMQP disabled, running on the export timer only")
	}

	performance := services.NewPerformanceService(store, category.NewResolver(store))
	exportWorker := worker.NewExportWorker(performance, sheetsClient)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)

	if events != nil {
		g.Go(func() error {
			return events.ConsumePlansImported(gctx, exportWorker.HandlePlansImported)
		})
	}
	g.Go(func() error {
		return exportWorker.RunPeriodicExport(gctx, cfg.ExportInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
