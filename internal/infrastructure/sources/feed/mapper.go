package feed

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/infrastructure/sources"
)

var errRejected = errors.New("record rejected")

type record struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Agency      string         `json:"agency"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Awarded     bool           `json:"awarded"`
	Value       sources.Amount `json:"value"`
	Location    string         `json:"location"`
	Region      string         `json:"region"`
	PublishedAt string         `json:"publishedAt"`
	ClosesAt    string         `json:"closesAt"`
	Category    string         `json:"category"`
	Categories  []string       `json:"categories"`
	UNSPSC      []struct {
		Code  string `json:"code"`
		Title string `json:"title"`
	} `json:"unspsc"`
}

func mapRecord(r record, sourceName string, now time.Time) (domain.TenderCandidate, error) {
	externalID := strings.TrimSpace(r.ID)
	if externalID == "" {
		return domain.TenderCandidate{}, fmt.Errorf("%w: missing id", errRejected)
	}
	description := sources.CleanText(r.Description)
	if !sources.UsableDescription(description) {
		return domain.TenderCandidate{}, fmt.Errorf("%w: description too short", errRejected)
	}

	publishDate, err := sources.ParseTime(r.PublishedAt)
	if err != nil {
		return domain.TenderCandidate{}, fmt.Errorf("publishedAt: %w", err)
	}
	closeDate, err := sources.ParseTime(r.ClosesAt)
	if err != nil {
		return domain.TenderCandidate{}, fmt.Errorf("closesAt: %w", err)
	}

	hints := make([]string, 0, len(r.Categories)+len(r.UNSPSC)+1)
	hints = append(hints, r.Category)
	hints = append(hints, r.Categories...)
	for _, code := range r.UNSPSC {
		hints = append(hints, code.Title)
	}

	awarded := r.Awarded || strings.EqualFold(strings.TrimSpace(r.Status), "awarded")
	title := sources.FirstNonEmpty(sources.CleanText(r.Title), sources.Truncate(description, 100))

	return domain.TenderCandidate{
		ExternalID:  externalID,
		Source:      sourceName,
		Title:       title,
		Agency:      sources.FirstNonEmpty(sources.CleanText(r.Agency), "Australian Government"),
		Description: description,
		Status:      sources.Status(awarded, closeDate, now),
		Value:       string(r.Value),
		Location:    sources.FirstNonEmpty(r.Region, r.Location, defaultLocation),
		PublishDate: publishDate,
		CloseDate:   closeDate,
		Categories:  sources.Categories(hints...),
	}, nil
}
