package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/core/ports"
)

type SyncOptions struct {
	Window              time.Duration
	EnrichmentBatchSize int
	Clock               func() time.Time
}

// SyncTendersUseCase runs every configured source in order and upserts
// what they return. At most one run is in flight at a time.
type SyncTendersUseCase struct {
	sources  []ports.TenderSource
	upserter *UpsertTenderUseCase
	trigger  ports.EnrichmentTrigger
	metrics  ports.PipelineMetrics
	logger   *slog.Logger
	opts     SyncOptions
	lock     ports.RunLock

	running sync.Mutex
}

func NewSyncTendersUseCase(
	sources []ports.TenderSource,
	upserter *UpsertTenderUseCase,
	trigger ports.EnrichmentTrigger,
	metrics ports.PipelineMetrics,
	logger *slog.Logger,
	opts SyncOptions,
) *SyncTendersUseCase {
	if opts.Window <= 0 {
		opts.Window = 30 * 24 * time.Hour
	}
	if opts.EnrichmentBatchSize <= 0 {
		opts.EnrichmentBatchSize = 10
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncTendersUseCase{
		sources:  sources,
		upserter: upserter,
		trigger:  trigger,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
	}
}

// WithLock makes runs exclusive across processes, not just within this one.
func (uc *SyncTendersUseCase) WithLock(lock ports.RunLock) *SyncTendersUseCase {
	uc.lock = lock
	return uc
}

func (uc *SyncTendersUseCase) SyncAll(ctx context.Context) ([]domain.SyncResult, error) {
	if !uc.running.TryLock() {
		return nil, domain.WrapError(domain.ErrSyncInProgress, "sync all", fmt.Errorf("another run holds the lock"))
	}
	defer uc.running.Unlock()

	if uc.lock != nil {
		release, acquired, err := uc.lock.TryAcquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire sync lock: %w", err)
		}
		if !acquired {
			return nil, domain.WrapError(domain.ErrSyncInProgress, "sync all", fmt.Errorf("another process holds the sync lock"))
		}
		defer release()
	}

	now := uc.opts.Clock().UTC()
	window := domain.FetchWindow{Since: now.Add(-uc.opts.Window), Until: now}

	results := make([]domain.SyncResult, 0, len(uc.sources))
	for _, source := range uc.sources {
		started := time.Now()
		result := uc.syncSource(ctx, source, window)
		uc.metrics.ObserveSourceSync(result, time.Since(started))
		uc.logger.Info("sync_source_done",
			"source", result.Source,
			"fetched", result.Fetched,
			"added", result.Added,
			"updated", result.Updated,
			"errors", result.Errors,
		)
		results = append(results, result)
	}

	uc.scheduleEnrichment(ctx)
	return results, nil
}

func (uc *SyncTendersUseCase) syncSource(ctx context.Context, source ports.TenderSource, window domain.FetchWindow) (result domain.SyncResult) {
	result.Source = source.Name()

	candidates, err := uc.fetch(ctx, source, window)
	if err != nil {
		if domain.IsKind(err, domain.ErrSourceUnavailable) {
			uc.logger.Warn("source_unavailable", "source", result.Source, "error", err)
			return result
		}
		uc.logger.Error("source_failed", "source", result.Source, "error", err)
		result.Errors++
		return result
	}

	result.Fetched = len(candidates)
	for _, candidate := range candidates {
		if candidate.Source == "" {
			candidate.Source = result.Source
		}
		_, isNew, err := uc.upserter.Upsert(ctx, candidate)
		if err != nil {
			result.Errors++
			uc.logger.Error("tender_upsert_failed",
				"source", result.Source,
				"external_id", candidate.ExternalID,
				"error", err,
			)
			continue
		}
		if isNew {
			result.Added++
		} else {
			result.Updated++
		}
	}
	return result
}

// fetch converts an adapter panic into an error so one broken source
// cannot take down the run.
func (uc *SyncTendersUseCase) fetch(ctx context.Context, source ports.TenderSource, window domain.FetchWindow) (candidates []domain.TenderCandidate, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			candidates = nil
			err = fmt.Errorf("source %s panicked: %v", source.Name(), recovered)
		}
	}()
	return source.Fetch(ctx, window)
}

func (uc *SyncTendersUseCase) scheduleEnrichment(ctx context.Context) {
	if uc.trigger == nil {
		return
	}
	if err := uc.trigger.TriggerEnrichment(context.WithoutCancel(ctx), uc.opts.EnrichmentBatchSize); err != nil {
		uc.logger.Warn("enrichment_trigger_failed", "error", err)
	}
}

// TestConnections probes every source concurrently; results keep source order.
func (uc *SyncTendersUseCase) TestConnections(ctx context.Context) []domain.ConnectionStatus {
	statuses := make([]domain.ConnectionStatus, len(uc.sources))
	var wg sync.WaitGroup
	for i, source := range uc.sources {
		wg.Add(1)
		go func(i int, source ports.TenderSource) {
			defer wg.Done()
			statuses[i] = domain.ConnectionStatus{Source: source.Name(), Reachable: uc.probe(ctx, source)}
		}(i, source)
	}
	wg.Wait()

	for _, status := range statuses {
		uc.metrics.SetSourceUp(status.Source, status.Reachable)
	}
	return statuses
}

func (uc *SyncTendersUseCase) probe(ctx context.Context, source ports.TenderSource) (ok bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			uc.logger.Error("source_probe_panicked", "source", source.Name(), "panic", recovered)
			ok = false
		}
	}()
	return source.TestConnection(ctx)
}

type noopMetrics struct{}

func (noopMetrics) ObserveSourceSync(domain.SyncResult, time.Duration) {}
func (noopMetrics) SetSourceUp(string, bool)                           {}
func (noopMetrics) ObserveEnrichment(string, time.Duration)            {}
