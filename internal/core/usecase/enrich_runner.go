package usecase

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type batchEnricher interface {
	EnrichBatch(ctx context.Context, maxCount int) (int, error)
}

// BackgroundEnrichmentRunner starts enrichment batches on a detached
// goroutine. A trigger that arrives while a batch runs is dropped.
type BackgroundEnrichmentRunner struct {
	enricher batchEnricher
	timeout  time.Duration
	logger   *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewBackgroundEnrichmentRunner(enricher batchEnricher, timeout time.Duration, logger *slog.Logger) *BackgroundEnrichmentRunner {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BackgroundEnrichmentRunner{
		enricher: enricher,
		timeout:  timeout,
		logger:   logger,
	}
}

func (r *BackgroundEnrichmentRunner) TriggerEnrichment(ctx context.Context, batchSize int) error {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Info("enrichment_trigger_skipped", "reason", "batch already running")
		return nil
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Store(false)
		defer cancel()
		defer func() {
			if recovered := recover(); recovered != nil {
				r.logger.Error("enrichment_batch_panicked", "panic", recovered)
			}
		}()

		count, err := r.enricher.EnrichBatch(runCtx, batchSize)
		if err != nil {
			r.logger.Error("enrichment_batch_failed", "enriched", count, "error", err)
			return
		}
		r.logger.Info("enrichment_batch_finished", "enriched", count)
	}()
	return nil
}

// Wait blocks until every started batch has returned.
func (r *BackgroundEnrichmentRunner) Wait() {
	r.wg.Wait()
}
