// ABOUTME: Background retry worker draining the submission spool
// ABOUTME: Periodically re-submits queued leads to the webhook with attempt caps

package spool

import (
	"context"
	"log/slog"
	"time"

	"github.com/formgate/formgate/internal/lead"
)

// Submitter delivers a lead to the external automation system.
type Submitter interface {
	Submit(ctx context.Context, l lead.Lead) error
}

// batchSize bounds how many entries one drain pass touches.
const batchSize = 50

// pruneAge is how long delivered entries are kept for inspection.
const pruneAge = 7 * 24 * time.Hour

// Worker drains the spool on an interval.
type Worker struct {
	store       *Store
	submitter   Submitter
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger

	// OnRetry, if set, is called once per delivery attempt with the outcome.
	OnRetry func(delivered bool)
}

// NewWorker creates a retry worker over the given store and submitter.
func NewWorker(store *Store, submitter Submitter, interval time.Duration, maxAttempts int) *Worker {
	return &Worker{
		store:       store,
		submitter:   submitter,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      slog.Default().With("component", "spool-worker"),
	}
}

// Run drains the spool every interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("spool worker started", "interval", w.interval, "max_attempts", w.maxAttempts)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("spool worker stopped")
			return
		case <-ticker.C:
			if n := w.Drain(ctx); n > 0 {
				w.logger.Info("spool drained", "delivered", n)
			}
			if _, err := w.store.PruneDelivered(ctx, pruneAge); err != nil {
				w.logger.Warn("pruning spool failed", "error", err)
			}
		}
	}
}

// Drain attempts delivery of one batch of pending entries and returns how
// many were delivered.
func (w *Worker) Drain(ctx context.Context) int {
	entries, err := w.store.Pending(ctx, batchSize, w.maxAttempts)
	if err != nil {
		w.logger.Error("reading pending entries failed", "error", err)
		return 0
	}

	delivered := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return delivered
		}

		err := w.submitter.Submit(ctx, entry.Lead)
		if w.OnRetry != nil {
			w.OnRetry(err == nil)
		}
		if err != nil {
			w.logger.Warn("retry failed", "id", entry.ID, "attempts", entry.Attempts+1, "error", err)
			if err := w.store.MarkFailed(ctx, entry.ID, err.Error()); err != nil {
				w.logger.Error("recording failed attempt", "id", entry.ID, "error", err)
			}
			continue
		}

		if err := w.store.MarkDelivered(ctx, entry.ID); err != nil {
			w.logger.Error("recording delivery", "id", entry.ID, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}
