package ports

import (
	"context"

	"github.com/adamantic/aussietenders/internal/core/domain"
)

// TenderSynchronizer is the inbound contract for running a full multi-source sync.
type TenderSynchronizer interface {
	SyncAll(ctx context.Context) ([]domain.SyncResult, error)
	TestConnections(ctx context.Context) []domain.ConnectionStatus
}

// TenderEnricher is the inbound contract for batch and on-demand enrichment.
type TenderEnricher interface {
	EnrichBatch(ctx context.Context, maxCount int) (int, error)
	EnrichSingle(ctx context.Context, tenderID int64) (*domain.EnrichmentResult, error)
}

// TenderReader is the inbound read model for stored tenders.
type TenderReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Tender, error)
	List(ctx context.Context, filter domain.TenderFilter) (*domain.TenderPage, error)
	Count(ctx context.Context) (int, error)
}
