// Package cli provides the initialisation shared by cmd/expensectl and
// cmd/expense-mirror.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"expensectl/internal/amqp"
	"expensectl/internal/backend"
	"expensectl/internal/config"
	"expensectl/internal/log"
	gsheet "expensectl/internal/sheets/google"
	"expensectl/internal/storage"
)

// SetupLogger builds the process logger and installs it as the slog default.
// An unknown level falls back to info.
func SetupLogger(level, format string) *log.Logger {
	cfg := log.DefaultConfig()
	if lvl, err := log.ParseLevel(level); err == nil {
		cfg.Level = lvl
	} else {
		cfg.Level = slog.LevelInfo
	}
	if format != "" {
		cfg.Format = format
	}
	logger := log.New(cfg)
	slog.SetDefault(logger.Logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend creates the expense service selected by cfg.
// Exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize expense backend", log.FieldError, err, "backend", cfg.Backend)
		os.Exit(1)
	}
	return res
}

// InitSnapshotStore opens the SQLite snapshot store, or returns nil when no
// path is configured. Exits the process on failure.
func InitSnapshotStore(logger *log.Logger, cfg *config.Config) *storage.SQLiteStore {
	if cfg.SnapshotDBPath == "" {
		logger.Debug("Snapshot store disabled - no SNAPSHOT_DB_PATH provided")
		return nil
	}
	store, err := storage.NewSQLiteStore(cfg.SnapshotDBPath, logger)
	if err != nil {
		logger.Error("Failed to initialize snapshot store", log.FieldError, err, "path", cfg.SnapshotDBPath)
		os.Exit(1)
	}
	return store
}

// InitPublisher connects the AMQP change publisher, or returns nil when AMQP
// is disabled or the broker is unreachable. The console keeps working
// without it.
func InitPublisher(logger *log.Logger, cfg *config.Config) *amqp.Client {
	if !cfg.AMQPEnabled() {
		logger.Debug("AMQP disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Warn("AMQP unavailable, changes will not be published", log.FieldError, err)
		return nil
	}
	logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange)
	return client
}

// InitExporter creates the Google Sheets exporter, or returns nil when no
// spreadsheet is configured or the client cannot be created.
func InitExporter(ctx context.Context, logger *log.Logger, cfg *config.Config) *gsheet.Client {
	if !cfg.SheetsEnabled() {
		logger.Debug("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil
	}
	client, err := gsheet.NewFromConfig(ctx, SheetsOptions(cfg, logger))
	if err != nil {
		logger.Warn("Failed to initialize Google Sheets client", log.FieldError, err)
		return nil
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client
}

// SheetsOptions maps the GOOGLE_* settings of cfg to Sheets client options.
func SheetsOptions(cfg *config.Config, logger *log.Logger) gsheet.Options {
	return gsheet.Options{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		SheetName:     cfg.GoogleSheetName,
		Credentials: gsheet.Credentials{
			ServiceAccountJSON:  cfg.GoogleServiceAccountJSON,
			ServiceAccountFile:  cfg.GoogleServiceAccountFile,
			ApplicationCredFile: cfg.GoogleApplicationCredFile,
			OAuthClientJSON:     cfg.GoogleOAuthClientJSON,
			OAuthClientFile:     cfg.GoogleOAuthClientFile,
			OAuthTokenJSON:      cfg.GoogleOAuthTokenJSON,
			OAuthTokenFile:      cfg.GoogleOAuthTokenFile,
		},
		Logger: logger,
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Closers collects resources to release on shutdown.
type Closers struct {
	mu    sync.Mutex
	names []string
	fns   []func() error
}

// Add registers fn under name. A nil fn is ignored.
func (c *Closers) Add(name string, fn func() error) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, name)
	c.fns = append(c.fns, fn)
}

// CloseAll runs every registered closer concurrently, logs each failure and
// returns the first one.
func (c *Closers) CloseAll(logger *log.Logger) error {
	c.mu.Lock()
	names, fns := c.names, c.fns
	c.names, c.fns = nil, nil
	c.mu.Unlock()

	var g errgroup.Group
	for i, fn := range fns {
		fn, name := fn, names[i]
		g.Go(func() error {
			if err := fn(); err != nil {
				logger.Warn("Failed to close resource", "resource", name, log.FieldError, err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
