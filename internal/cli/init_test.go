package cli

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"

	"expensectl/internal/config"
	"expensectl/internal/log"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		level string
		want  slog.Level
	}{
		{level: "debug", want: slog.LevelDebug},
		{level: "warn", want: slog.LevelWarn},
		{level: "nonsense", want: slog.LevelInfo},
	}
	for _, tt := range tests {
		logger := SetupLogger(tt.level, "json")
		if !logger.Enabled(context.Background(), tt.want) {
			t.Errorf("level %q: %v should be enabled", tt.level, tt.want)
		}
		if tt.want > slog.LevelDebug && logger.Enabled(context.Background(), tt.want-4) {
			t.Errorf("level %q: %v should be disabled", tt.level, tt.want-4)
		}
	}
}

func TestCloseAll(t *testing.T) {
	var c Closers
	var closed atomic.Int32
	boom := errors.New("boom")

	c.Add("ok", func() error { closed.Add(1); return nil })
	c.Add("fails", func() error { closed.Add(1); return boom })
	c.Add("skipped", nil)

	if err := c.CloseAll(log.Discard()); !errors.Is(err, boom) {
		t.Fatalf("CloseAll error = %v, want boom", err)
	}
	if closed.Load() != 2 {
		t.Errorf("closed %d resources, want 2", closed.Load())
	}

	if err := c.CloseAll(log.Discard()); err != nil {
		t.Errorf("second CloseAll should be a no-op, got %v", err)
	}
	if closed.Load() != 2 {
		t.Errorf("resources closed twice")
	}
}

func TestInitSnapshotStore(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		if s := InitSnapshotStore(log.Discard(), &config.Config{}); s != nil {
			t.Fatal("expected nil store without a path")
		}
	})

	t.Run("opens", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "snapshots.db")
		s := InitSnapshotStore(log.Discard(), &config.Config{SnapshotDBPath: path})
		if s == nil {
			t.Fatal("expected a store")
		}
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
}

func TestInitPublisherAndExporter_Disabled(t *testing.T) {
	cfg := &config.Config{}
	if InitPublisher(log.Discard(), cfg) != nil {
		t.Error("publisher should be nil without AMQP_URL")
	}
	if InitExporter(context.Background(), log.Discard(), cfg) != nil {
		t.Error("exporter should be nil without a spreadsheet id")
	}
}

func TestSheetsOptions(t *testing.T) {
	cfg := &config.Config{
		GoogleSpreadsheetID:      "sheet-id",
		GoogleSheetName:          "Tab",
		GoogleServiceAccountFile: "/tmp/sa.json",
		GoogleOAuthTokenJSON:     `{"access_token":"x"}`,
	}
	opts := SheetsOptions(cfg, nil)
	if opts.SpreadsheetID != "sheet-id" || opts.SheetName != "Tab" {
		t.Errorf("unexpected target %+v", opts)
	}
	if opts.Credentials.ServiceAccountFile != "/tmp/sa.json" || opts.Credentials.OAuthTokenJSON == "" {
		t.Errorf("credentials not carried over: %+v", opts.Credentials)
	}
}
