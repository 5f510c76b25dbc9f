package backend

import (
	"context"
	"time"

	"expensectl/internal/ports"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the expense service and optional cleanup function
type BackendResult struct {
	Service ports.ExpenseService
	Cleanup CleanupFunc
}

// Factory creates expense services based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// HTTP specific
	APIBaseURL     string
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int

	// Memory specific
	SeedFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	HTTPBackend   BackendType = "http"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case HTTPBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
