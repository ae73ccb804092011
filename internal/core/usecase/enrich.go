package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/core/ports"
)

const (
	enrichmentOutcomeSuccess   = "success"
	enrichmentOutcomeDefaulted = "defaulted"
	enrichmentOutcomeCached    = "cached"
)

type EnrichOptions struct {
	// ItemDelay is the pause between model calls inside one batch.
	ItemDelay time.Duration
	Clock     func() time.Time
}

type EnrichTendersUseCase struct {
	repo       ports.TenderRepository
	generator  ports.TextGenerator
	vocabulary *domain.Vocabulary
	metrics    ports.PipelineMetrics
	logger     *slog.Logger
	opts       EnrichOptions
	lock       ports.RunLock
}

func NewEnrichTendersUseCase(
	repo ports.TenderRepository,
	generator ports.TextGenerator,
	vocabulary *domain.Vocabulary,
	metrics ports.PipelineMetrics,
	logger *slog.Logger,
	opts EnrichOptions,
) *EnrichTendersUseCase {
	if vocabulary == nil {
		vocabulary = domain.Categories()
	}
	if opts.ItemDelay < 0 {
		opts.ItemDelay = 0
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
	return &EnrichTendersUseCase{
		repo:       repo,
		generator:  generator,
		vocabulary: vocabulary,
		metrics:    metrics,
		logger:     logger,
		opts:       opts,
	}
}

// WithLock keeps batches from overlapping across processes.
func (uc *EnrichTendersUseCase) WithLock(lock ports.RunLock) *EnrichTendersUseCase {
	uc.lock = lock
	return uc
}

// EnrichBatch processes up to maxCount unenriched tenders one at a time and
// returns how many received a real summary. Failed items are marked enriched
// with the fallback category and are not retried.
func (uc *EnrichTendersUseCase) EnrichBatch(ctx context.Context, maxCount int) (int, error) {
	if maxCount <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "enrich batch", fmt.Errorf("max count must be positive, got %d", maxCount))
	}

	if uc.lock != nil {
		release, acquired, err := uc.lock.TryAcquire(ctx)
		if err != nil {
			return 0, fmt.Errorf("acquire enrichment lock: %w", err)
		}
		if !acquired {
			uc.logger.Info("enrichment_batch_skipped", "reason", "batch running elsewhere")
			return 0, nil
		}
		defer release()
	}

	tenders, err := uc.repo.ListUnenriched(ctx, maxCount)
	if err != nil {
		return 0, fmt.Errorf("list unenriched tenders: %w", err)
	}
	if len(tenders) == 0 {
		return 0, nil
	}

	limiter := uc.pacer()
	enriched := 0
	for i := range tenders {
		if err := limiter.Wait(ctx); err != nil {
			return enriched, fmt.Errorf("enrichment pacing: %w", err)
		}

		tender := tenders[i]
		_, err := uc.enrichOne(ctx, tender)
		if err != nil {
			continue
		}
		enriched++
	}

	uc.logger.Info("enrichment_batch_done", "requested", maxCount, "selected", len(tenders), "enriched", enriched)
	return enriched, nil
}

// EnrichSingle returns the cached summary when present, otherwise runs the
// same call, validation and persistence as a batch item.
func (uc *EnrichTendersUseCase) EnrichSingle(ctx context.Context, tenderID int64) (*domain.EnrichmentResult, error) {
	tender, err := uc.repo.GetByID(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if tender.AISummary != "" {
		uc.metrics.ObserveEnrichment(enrichmentOutcomeCached, 0)
		return &domain.EnrichmentResult{
			TenderID:   tender.ID,
			Summary:    tender.AISummary,
			Categories: tender.AICategories,
			Cached:     true,
		}, nil
	}

	enrichment, err := uc.enrichOne(ctx, *tender)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEnrichmentFailed, "enrich single", err)
	}
	return &domain.EnrichmentResult{
		TenderID:   tender.ID,
		Summary:    enrichment.Summary,
		Categories: enrichment.Categories,
	}, nil
}

// enrichOne persists either the validated enrichment or the defaulted state.
// The returned error reports a model or parse failure after the default
// has been written, or a failed write.
func (uc *EnrichTendersUseCase) enrichOne(ctx context.Context, tender domain.Tender) (domain.Enrichment, error) {
	started := time.Now()

	enrichment, callErr := uc.callModel(ctx, tender)
	if callErr != nil {
		uc.logger.Warn("enrichment_defaulted", "tender_id", tender.ID, "external_id", tender.ExternalID, "error", callErr)
		enrichment = domain.Enrichment{
			Categories: []string{uc.vocabulary.Fallback()},
			EnrichedAt: uc.opts.Clock().UTC(),
		}
	}

	if err := uc.repo.SaveEnrichment(ctx, tender.ID, enrichment); err != nil {
		uc.logger.Error("enrichment_save_failed", "tender_id", tender.ID, "error", err)
		uc.metrics.ObserveEnrichment("save_error", time.Since(started))
		return domain.Enrichment{}, fmt.Errorf("save enrichment tender_id=%d: %w", tender.ID, err)
	}

	if callErr != nil {
		uc.metrics.ObserveEnrichment(enrichmentOutcomeDefaulted, time.Since(started))
		return enrichment, callErr
	}
	uc.metrics.ObserveEnrichment(enrichmentOutcomeSuccess, time.Since(started))
	return enrichment, nil
}

func (uc *EnrichTendersUseCase) callModel(ctx context.Context, tender domain.Tender) (domain.Enrichment, error) {
	raw, err := uc.generator.Generate(ctx, buildEnrichmentPrompt(tender, uc.vocabulary.Labels()))
	if err != nil {
		return domain.Enrichment{}, fmt.Errorf("generate enrichment: %w", err)
	}
	reply, err := parseEnrichmentReply(raw)
	if err != nil {
		return domain.Enrichment{}, err
	}
	return domain.Enrichment{
		Summary:    reply.Summary,
		Categories: uc.vocabulary.Validate(reply.Categories),
		EnrichedAt: uc.opts.Clock().UTC(),
	}, nil
}

// pacer lets the first call through immediately and spaces the rest by ItemDelay.
func (uc *EnrichTendersUseCase) pacer() *rate.Limiter {
	if uc.opts.ItemDelay == 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(uc.opts.ItemDelay), 1)
}
