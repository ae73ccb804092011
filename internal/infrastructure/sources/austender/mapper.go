package austender

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/infrastructure/sources"
)

const (
	defaultAgency   = "Australian Government"
	defaultLocation = "National"
	titleRunes      = 100
)

var awardTags = map[string]struct{}{
	"award":             {},
	"awardUpdate":       {},
	"contract":          {},
	"contractAmendment": {},
}

// errRejected marks a release that fails the quality gate.
var errRejected = errors.New("release rejected")

func mapRelease(r release, now time.Time) (domain.TenderCandidate, error) {
	if strings.TrimSpace(r.OCID) == "" {
		return domain.TenderCandidate{}, fmt.Errorf("%w: missing ocid", errRejected)
	}

	var c contract
	if len(r.Contracts) > 0 {
		c = r.Contracts[0]
	}
	description := sources.CleanText(c.Description)
	if !sources.UsableDescription(description) {
		return domain.TenderCandidate{}, fmt.Errorf("%w: description too short", errRejected)
	}

	procuring := r.partyWithRole("procuringEntity")
	supplier := r.partyWithRole("supplier")

	publishDate, err := sources.ParseTime(r.Date)
	if err != nil {
		return domain.TenderCandidate{}, fmt.Errorf("release date: %w", err)
	}
	var closeDate *time.Time
	if c.Period != nil {
		if closeDate, err = sources.ParseTime(c.Period.EndDate); err != nil {
			return domain.TenderCandidate{}, fmt.Errorf("contract end date: %w", err)
		}
	}

	var value string
	if c.Value != nil {
		value = string(c.Value.Amount)
	}

	hints := make([]string, 0, len(c.Items)+1)
	if r.Tender != nil {
		hints = append(hints, r.Tender.ProcurementMethodDetails)
	}
	for _, item := range c.Items {
		if item.Classification != nil {
			hints = append(hints, item.Classification.Description)
		}
	}

	return domain.TenderCandidate{
		ExternalID:  strings.TrimSpace(r.OCID),
		Source:      SourceName,
		Title:       sources.Truncate(description, titleRunes),
		Agency:      sources.FirstNonEmpty(procuring.name(), defaultAgency),
		Description: description,
		Status:      sources.Status(hasAwardTag(r.Tag), closeDate, now),
		Value:       value,
		Location:    sources.FirstNonEmpty(procuring.region(), supplier.region(), defaultLocation),
		PublishDate: publishDate,
		CloseDate:   closeDate,
		Categories:  sources.Categories(hints...),
	}, nil
}

func hasAwardTag(tags []string) bool {
	for _, tag := range tags {
		if _, ok := awardTags[tag]; ok {
			return true
		}
	}
	return false
}
