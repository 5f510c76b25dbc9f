package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"expensectl/internal/api"
	"expensectl/internal/config"
	"expensectl/internal/memory"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	cfg := &config.Config{Backend: "sqlite"}
	if _, err := FromAppConfig(cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg = &config.Config{
		Backend:        "http",
		APIBaseURL:     "http://localhost:5000",
		RequestTimeout: 3 * time.Second,
		RateLimit:      2,
		RateBurst:      4,
		SeedFile:       "seed.txt",
	}
	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if got.Type != HTTPBackend || got.APIBaseURL != cfg.APIBaseURL || got.RateBurst != 4 || got.SeedFile != "seed.txt" {
		t.Fatalf("unexpected backend config %+v", got)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "http", cfg: Config{Type: HTTPBackend, APIBaseURL: "http://localhost"}},
		{name: "http without url", cfg: Config{Type: HTTPBackend}, wantErr: true},
		{name: "memory", cfg: Config{Type: MemoryBackend}},
		{name: "unknown", cfg: Config{Type: "sheets"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	res, err := f.CreateBackend(ctx, Config{Type: HTTPBackend, APIBaseURL: "http://127.0.0.1:5000", RateLimit: 5, RateBurst: 5})
	if err != nil {
		t.Fatalf("http backend: %v", err)
	}
	if _, ok := res.Service.(*api.Client); !ok {
		t.Fatalf("expected *api.Client, got %T", res.Service)
	}

	if _, err := f.CreateBackend(ctx, Config{Type: HTTPBackend, APIBaseURL: "ftp://x"}); err == nil {
		t.Fatal("expected error for bad API URL")
	}

	seed := filepath.Join(t.TempDir(), "seed.txt")
	if err := os.WriteFile(seed, []byte("2024-01-02;Coffee;3.50\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err = f.CreateBackend(ctx, Config{Type: MemoryBackend, SeedFile: seed})
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := res.Service.(*memory.Store); !ok {
		t.Fatalf("expected *memory.Store, got %T", res.Service)
	}
	list, _ := res.Service.ListExpenses(ctx)
	if len(list) != 1 {
		t.Fatalf("expected seeded expense, got %v", list)
	}
}
