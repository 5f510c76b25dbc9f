package backend

import (
	"context"
	"fmt"

	"expensectl/internal/api"
	"expensectl/internal/log"
	"expensectl/internal/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case HTTPBackend:
		return f.createHTTPBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createHTTPBackend(config Config) (*BackendResult, error) {
	opts := []api.Option{
		api.WithRateLimit(config.RateLimit, config.RateBurst),
		api.WithLogger(f.logger),
	}
	if config.RequestTimeout > 0 {
		opts = append(opts, api.WithTimeout(config.RequestTimeout))
	}

	client, err := api.NewClient(config.APIBaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize API client: %w", err)
	}

	f.logger.Info("Initialized HTTP backend",
		log.FieldURL, config.APIBaseURL,
		"rate_limit", config.RateLimit,
		"rate_burst", config.RateBurst)

	return &BackendResult{
		Service: client,
		Cleanup: nil, // Idle connections are released with the process
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	var (
		store *memory.Store
		err   error
	)
	if config.SeedFile != "" {
		store, err = memory.NewFromFile(config.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to seed memory backend: %w", err)
		}
	} else {
		store = memory.New(nil)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{
		Service: store,
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}
