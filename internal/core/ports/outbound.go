package ports

import (
	"context"
	"time"

	"github.com/adamantic/aussietenders/internal/core/domain"
)

// TenderSource fetches one external feed and maps it to candidates.
// Fetch returns domain.ErrSourceUnavailable when the endpoint cannot be used
// for this run; per-record mapping failures are skipped inside the adapter.
type TenderSource interface {
	Name() string
	Fetch(ctx context.Context, window domain.FetchWindow) ([]domain.TenderCandidate, error)
	TestConnection(ctx context.Context) bool
}

// TenderRepository persists tenders. Update never touches AI fields.
// External ids are unique per source, not globally.
type TenderRepository interface {
	GetByExternalID(ctx context.Context, source, externalID string) (*domain.Tender, error)
	Create(ctx context.Context, candidate domain.TenderCandidate) (*domain.Tender, error)
	Update(ctx context.Context, id int64, candidate domain.TenderCandidate) (*domain.Tender, error)
	GetByID(ctx context.Context, id int64) (*domain.Tender, error)
	ListUnenriched(ctx context.Context, limit int) ([]domain.Tender, error)
	SaveEnrichment(ctx context.Context, id int64, enrichment domain.Enrichment) error
	List(ctx context.Context, filter domain.TenderFilter) (*domain.TenderPage, error)
	Count(ctx context.Context) (int, error)
}

// RunLock serializes a job across every process sharing the store.
// acquired is false, with a nil error, when another holder has it.
type RunLock interface {
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

// TextGenerator sends a prompt to a language model and returns its raw text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EnrichmentTrigger schedules an enrichment batch without waiting for it.
type EnrichmentTrigger interface {
	TriggerEnrichment(ctx context.Context, batchSize int) error
}

// EnrichmentRequests delivers batch requests to a worker process.
type EnrichmentRequests interface {
	SubscribeEnrichmentRequested(ctx context.Context, handler func(context.Context, int) error) error
}

// PipelineMetrics records sync and enrichment outcomes.
type PipelineMetrics interface {
	ObserveSourceSync(result domain.SyncResult, duration time.Duration)
	SetSourceUp(source string, up bool)
	ObserveEnrichment(outcome string, duration time.Duration)
}
