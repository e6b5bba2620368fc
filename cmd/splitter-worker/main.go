package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nivanenko/shared-expenses-tracker/internal/amqp"
	"github.com/nivanenko/shared-expenses-tracker/internal/cli"
	"github.com/nivanenko/shared-expenses-tracker/internal/config"
	"github.com/nivanenko/shared-expenses-tracker/internal/log"
	gsheet "github.com/nivanenko/shared-expenses-tracker/internal/sheets/google"
	"github.com/nivanenko/shared-expenses-tracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), log.ComponentWorker, os.Stdout)
	logger.WithFields(log.NewFields().WithOperation(log.OpStartup)).Info("Starting splitter-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sheetsClient, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		LedgerSheet:   cfg.GoogleSheetName,
		WriteOffSheet: cfg.GoogleWriteOffSheet,
		GiftsSheet:    cfg.GoogleGiftsSheet,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Google Sheets client", "error", err)
	}
	logger.WithComponent(log.ComponentSheets).Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	mirrorWorker, err := worker.NewMirrorWorker(sheetsClient, cfg.MirrorTimeout, cfg.MirrorDedupSize)
	if err != nil {
		logger.Fatal(ctx, "Failed to create mirror worker", "error", err)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize AMQP client", "error", err)
	}
	logger.WithComponent(log.ComponentAMQP).Info("AMQP client initialized",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	shutdownLog := logger.WithFields(log.NewFields().WithOperation(log.OpShutdown))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeLedgerEvents(gctx, mirrorWorker.HandleEvent)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownLog.Info("Shutting down worker...")
		return amqpClient.Close()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		shutdownLog.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	shutdownLog.Info("Worker shutdown complete")
}
