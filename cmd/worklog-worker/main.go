package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"worklog/internal/cli"
	"worklog/internal/event"
	gsheet "worklog/internal/export/google"
	"worklog/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting worklog-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	// The journal is the source of truth the reconcile loop reads from.
	journalStore := cli.InitJournal(logger, cfg.DataFile)

	// The SQLite archive is what this worker keeps in step.
	archive := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer archive.Close()

	// Google Sheets export is optional.
	var exporter worker.Exporter
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = sheetsClient
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	archiveWorker := worker.NewArchiveWorker(journalStore, archive, exporter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	// Live updates arrive over AMQP when a broker is configured. Without one
	// the reconcile loop alone keeps the archive in step.
	if cfg.AMQPURL != "" {
		eventClient, err := event.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer eventClient.Close()

		group.Go(func() error {
			err := eventClient.ConsumeUpdates(ctx,
				func(msg *event.SlotUpdateMessage) error {
					return archiveWorker.HandleSlotUpdate(ctx, msg)
				},
				func(msg *event.HolidayUpdateMessage) error {
					return archiveWorker.HandleHolidayUpdate(ctx, msg)
				})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
				return err
			}
			return nil
		})
	} else {
		logger.Info("AMQP disabled - relying on periodic reconcile only")
	}

	group.Go(func() error {
		err := archiveWorker.RunReconcileLoop(ctx, cfg.ReconcileInterval)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Reconcile loop failed", "error", err)
			return err
		}
		return nil
	})

	// Push last month's summary to the spreadsheet once at startup. The month
	// just closed is the one whose numbers stop moving.
	if exporter != nil {
		group.Go(func() error {
			prev := time.Now().AddDate(0, -1, 0)
			if err := archiveWorker.ExportMonthlySummary(ctx, prev.Year(), int(prev.Month())); err != nil {
				logger.Error("Monthly summary export failed", "error", err, "year", prev.Year(), "month", int(prev.Month()))
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
