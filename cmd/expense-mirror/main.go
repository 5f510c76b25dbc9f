package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"expensectl/internal/amqp"
	"expensectl/internal/cli"
	"expensectl/internal/log"
	gsheet "expensectl/internal/sheets/google"
	"expensectl/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.LoadEnvFile()

	logger := cli.SetupLogger("info", "text")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	if !cfg.AMQPEnabled() || !cfg.SheetsEnabled() {
		logger.Error("expense-mirror requires AMQP_URL and GOOGLE_SPREADSHEET_ID")
		return 1
	}

	logger.Info("Starting expense-mirror")

	ctx, stop := cli.SignalContext()
	defer stop()

	var closers cli.Closers
	defer func() { _ = closers.CloseAll(logger) }()

	be := cli.InitBackend(ctx, logger, cfg)
	closers.Add("backend", be.Cleanup)

	sheets, err := gsheet.NewFromConfig(ctx, cli.SheetsOptions(cfg, logger))
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		return 1
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return 1
	}
	closers.Add("amqp", consumer.Close)

	mirror := worker.NewMirrorWorker(be.Service, sheets, logger)

	// Catch up on anything changed while the worker was down
	if _, err := mirror.Sync(ctx); err != nil {
		logger.Warn("Startup mirror failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeChanges(gctx, mirror.HandleChange)
	})
	g.Go(func() error {
		return mirror.RunPeriodic(gctx, cfg.MirrorSyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Mirror worker stopped", log.FieldError, err)
		return 1
	}
	logger.Info("Mirror worker shutdown complete")
	return 0
}
