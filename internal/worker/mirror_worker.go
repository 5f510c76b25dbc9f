// Package worker mirrors the expense collection to an export destination.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"expensectl/internal/amqp"
	"expensectl/internal/cache"
	"expensectl/internal/log"
	"expensectl/internal/ports"
)

// MirrorWorker rewrites the export destination with the full collection
// whenever a change is announced, and periodically as a backup in case
// messages are lost.
type MirrorWorker struct {
	svc      ports.ExpenseService
	exporter ports.Exporter
	logger   *log.Logger

	// serialises exports so a clear and a write never interleave
	mu sync.Mutex
}

func NewMirrorWorker(svc ports.ExpenseService, exporter ports.Exporter, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		svc:      svc,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleChange processes a single change message from AMQP. An error makes
// the consumer requeue the message.
func (w *MirrorWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	w.logger.InfoContext(ctx, "Processing change message",
		log.FieldOperation, msg.Operation,
		log.FieldExpenseID, msg.ExpenseID,
		"timestamp", msg.Timestamp)

	if _, err := w.Sync(ctx); err != nil {
		return fmt.Errorf("mirror after %s of %d: %w", msg.Operation, msg.ExpenseID, err)
	}
	return nil
}

// Sync loads the current collection into a fresh cache and exports it.
func (w *MirrorWorker) Sync(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := cache.New(w.svc, cache.WithLogger(w.logger))
	if res := c.Load(ctx); !res.Synced {
		return "", fmt.Errorf("load expenses: %w", res.Err)
	}

	ref, err := w.exporter.Export(ctx, c.View())
	if err != nil {
		return "", fmt.Errorf("export expenses: %w", err)
	}

	w.logger.InfoContext(ctx, "Mirrored expenses",
		log.FieldCount, c.Len(),
		log.FieldSheetsRef, ref)
	return ref, nil
}

// RunPeriodic calls Sync every interval until ctx is done. Failures are
// logged and retried at the next tick.
func (w *MirrorWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Sync(ctx); err != nil {
				w.logger.WarnContext(ctx, "Periodic mirror failed", log.FieldError, err)
			}
		}
	}
}
