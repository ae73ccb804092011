package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/core/ports"
)

type UpsertTenderUseCase struct {
	repo ports.TenderRepository
}

func NewUpsertTenderUseCase(repo ports.TenderRepository) *UpsertTenderUseCase {
	return &UpsertTenderUseCase{repo: repo}
}

// Upsert inserts the candidate or updates the row sharing its source and
// external id.
// The update path replaces source fields only; AI fields stay as stored.
func (uc *UpsertTenderUseCase) Upsert(ctx context.Context, candidate domain.TenderCandidate) (*domain.Tender, bool, error) {
	candidate.ExternalID = strings.TrimSpace(candidate.ExternalID)
	if len(candidate.Categories) == 0 {
		candidate.Categories = []string{domain.SentinelCategory}
	}

	if candidate.ExternalID == "" {
		return uc.create(ctx, candidate)
	}

	existing, err := uc.repo.GetByExternalID(ctx, candidate.Source, candidate.ExternalID)
	if err != nil {
		if domain.IsKind(err, domain.ErrTenderNotFound) {
			return uc.create(ctx, candidate)
		}
		return nil, false, fmt.Errorf("lookup tender external_id=%s: %w", candidate.ExternalID, err)
	}

	updated, err := uc.repo.Update(ctx, existing.ID, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("update tender id=%d: %w", existing.ID, err)
	}
	return updated, false, nil
}

func (uc *UpsertTenderUseCase) create(ctx context.Context, candidate domain.TenderCandidate) (*domain.Tender, bool, error) {
	created, err := uc.repo.Create(ctx, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("create tender external_id=%s: %w", candidate.ExternalID, err)
	}
	return created, true, nil
}
