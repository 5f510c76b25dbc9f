package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"expensectl/internal/cache"
	"expensectl/internal/cli"
	"expensectl/internal/console"
	"expensectl/internal/log"
	"expensectl/internal/ports"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.LoadEnvFile()

	// Bootstrap logger until the configured level and format are known
	logger := cli.SetupLogger("warn", "text")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := cli.SignalContext()
	defer stop()

	var closers cli.Closers
	defer func() { _ = closers.CloseAll(logger) }()

	be := cli.InitBackend(ctx, logger, cfg)
	closers.Add("backend", be.Cleanup)

	opts := []cache.Option{cache.WithLogger(logger)}

	var snapshots ports.SnapshotReader
	if store := cli.InitSnapshotStore(logger, cfg); store != nil {
		closers.Add("snapshot store", store.Close)
		opts = append(opts, cache.WithSnapshots(store), cache.WithJournal(store))
		snapshots = store
	}

	if publisher := cli.InitPublisher(logger, cfg); publisher != nil {
		closers.Add("amqp", publisher.Close)
		opts = append(opts, cache.WithPublisher(publisher))
	}

	var exporter ports.Exporter
	if sheets := cli.InitExporter(ctx, logger, cfg); sheets != nil {
		exporter = sheets
	}

	expenses := cache.New(be.Service, opts...)
	if res := expenses.Load(ctx); !res.Synced {
		fmt.Fprintln(os.Stderr, "Warning: could not load expenses, starting with an empty list")
	}

	con := console.New(expenses, console.Options{
		In:        os.Stdin,
		Out:       os.Stdout,
		Exporter:  exporter,
		Snapshots: snapshots,
		Logger:    logger,
	})

	if err := con.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Console stopped", log.FieldError, err)
		return 1
	}
	return 0
}
