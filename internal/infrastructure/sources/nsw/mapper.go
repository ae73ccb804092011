package nsw

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/infrastructure/sources"
)

const (
	defaultTitle    = "Untitled Tender"
	defaultAgency   = "NSW Government"
	defaultLocation = "NSW"
)

var errRejected = errors.New("rft rejected")

var sydney = mustLoadLocation("Australia/Sydney")

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2-Jan-2006 3:04pm",
	"2006-01-02",
}

type searchResponse struct {
	Count int               `json:"count"`
	RFTs  []json.RawMessage `json:"rfts"`
	RFT   []json.RawMessage `json:"rft"`
}

type rft struct {
	RFTUUID           string `json:"RFTUUID"`
	RFTNumber         string `json:"RFTNumber"`
	AgencyName        string `json:"AgencyName"`
	TenderTitle       string `json:"TenderTitle"`
	TenderDescription string `json:"TenderDescription"`
	TenderType        string `json:"TenderType"`
	CloseDateTime     string `json:"CloseDateTime"`
	PublishDateTime   string `json:"PublishDateTime"`
	Location          string `json:"Location"`
	Category          string `json:"Category"`
	UNSPSC            []struct {
		UNSPSCCode  string `json:"UNSPSCCode"`
		UNSPSCTitle string `json:"UNSPSCTitle"`
	} `json:"UNSPSC"`
}

func mapRFT(r rft, now time.Time) (domain.TenderCandidate, error) {
	id := sources.FirstNonEmpty(r.RFTUUID, r.RFTNumber)
	if id == "" {
		return domain.TenderCandidate{}, fmt.Errorf("%w: missing RFTUUID", errRejected)
	}
	description := sources.CleanText(r.TenderDescription)
	if !sources.UsableDescription(description) {
		return domain.TenderCandidate{}, fmt.Errorf("%w: description too short", errRejected)
	}

	publishDate, err := parseLocalTime(r.PublishDateTime)
	if err != nil {
		return domain.TenderCandidate{}, fmt.Errorf("publish date: %w", err)
	}
	closeDate, err := parseLocalTime(r.CloseDateTime)
	if err != nil {
		return domain.TenderCandidate{}, fmt.Errorf("close date: %w", err)
	}

	hints := make([]string, 0, len(r.UNSPSC)+2)
	hints = append(hints, r.Category)
	for _, code := range r.UNSPSC {
		hints = append(hints, code.UNSPSCTitle)
	}
	hints = append(hints, r.TenderType)

	return domain.TenderCandidate{
		ExternalID:  id,
		Source:      SourceName,
		Title:       sources.FirstNonEmpty(sources.CleanText(r.TenderTitle), defaultTitle),
		Agency:      sources.FirstNonEmpty(sources.CleanText(r.AgencyName), defaultAgency),
		Description: description,
		Status:      sources.Status(false, closeDate, now),
		Location:    nswLocation(r.Location),
		PublishDate: publishDate,
		CloseDate:   closeDate,
		Categories:  sources.Categories(hints...),
	}, nil
}

func nswLocation(raw string) string {
	location := sources.FirstNonEmpty(sources.CleanText(raw), defaultLocation)
	if !strings.Contains(location, "NSW") {
		location += ", NSW"
	}
	return location
}

// parseLocalTime reads offset-less timestamps as Sydney local time.
func parseLocalTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := sources.ParseTime(raw, time.RFC3339Nano, time.RFC3339); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, sydney); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("unrecognised time %q", raw)
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}
