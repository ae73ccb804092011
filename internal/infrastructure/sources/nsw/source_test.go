package nsw

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/adamantic/aussietenders/internal/core/domain"
)

type rendererFake struct {
	html    string
	err     error
	calls   int
	homeURL string
	apiURL  string
	wait    time.Duration
	hasDL   bool
}

func (f *rendererFake) Render(ctx context.Context, homeURL, apiURL string, wait time.Duration) (string, error) {
	f.calls++
	f.homeURL, f.apiURL, f.wait = homeURL, apiURL, wait
	_, f.hasDL = ctx.Deadline()
	return f.html, f.err
}

var fixedNow = time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

const renderedSearch = `<html><head></head><body><pre style="word-wrap: break-word;">{
  "count": 3,
  "rfts": [
    {
      "RFTUUID": "A1B2",
      "AgencyName": "Transport for NSW",
      "TenderTitle": "Bridge inspection panel",
      "TenderDescription": "Inspection &amp; maintenance of rail bridges",
      "TenderType": "Open tender",
      "CloseDateTime": "2026-07-01T14:00:00",
      "PublishDateTime": "2026-06-01T09:00:00",
      "Location": "Newcastle",
      "Category": "Engineering",
      "UNSPSC": [{"UNSPSCCode": "72141000", "UNSPSCTitle": "Infrastructure building"}]
    },
    {
      "RFTUUID": "C3D4",
      "TenderDescription": "Cleaning of regional offices",
      "CloseDateTime": "2026-01-01T14:00:00",
      "Location": "Dubbo NSW"
    },
    {
      "RFTUUID": "E5F6",
      "TenderTitle": "No text",
      "TenderDescription": ""
    }
  ]
}</pre></body></html>`

func TestFetchMapsRenderedSearch(t *testing.T) {
	renderer := &rendererFake{html: renderedSearch}
	src := New(Options{Renderer: renderer, ChallengeWait: 3 * time.Second, Clock: func() time.Time { return fixedNow }})

	got, err := src.Fetch(context.Background(), domain.FetchWindow{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if renderer.homeURL != defaultHomeURL || renderer.apiURL != defaultAPIURL || renderer.wait != 3*time.Second {
		t.Fatalf("unexpected render call: %+v", renderer)
	}
	if !renderer.hasDL {
		t.Fatalf("render must run under a deadline")
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}

	first := got[0]
	if first.ExternalID != "A1B2" || first.Source != SourceName {
		t.Fatalf("unexpected identity: %+v", first)
	}
	if first.Description != "Inspection & maintenance of rail bridges" {
		t.Fatalf("unexpected description %q", first.Description)
	}
	if first.Location != "Newcastle, NSW" || first.Status != domain.StatusOpen {
		t.Fatalf("unexpected location/status: %q %s", first.Location, first.Status)
	}
	if !reflect.DeepEqual(first.Categories, []string{"Engineering", "Infrastructure building", "Open tender"}) {
		t.Fatalf("unexpected categories %v", first.Categories)
	}
	if first.CloseDate == nil || !first.CloseDate.Equal(time.Date(2026, 7, 1, 4, 0, 0, 0, time.UTC)) {
		t.Fatalf("close date not read as Sydney time: %v", first.CloseDate)
	}

	second := got[1]
	if second.Title != defaultTitle || second.Agency != defaultAgency || second.Location != "Dubbo NSW" {
		t.Fatalf("unexpected defaults: %+v", second)
	}
	if second.Status != domain.StatusClosed {
		t.Fatalf("expected Closed, got %s", second.Status)
	}
	if !reflect.DeepEqual(second.Categories, []string{domain.SentinelCategory}) {
		t.Fatalf("expected sentinel category, got %v", second.Categories)
	}
}

func TestFetchAcceptsRFTKeyAndRawJSON(t *testing.T) {
	renderer := &rendererFake{html: `{"rft": [{"RFTUUID": "X", "TenderDescription": "Legal advisory services"}]}`}
	src := New(Options{Renderer: renderer, Clock: func() time.Time { return fixedNow }})

	got, err := src.Fetch(context.Background(), domain.FetchWindow{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 1 || got[0].Location != defaultLocation {
		t.Fatalf("unexpected candidates: %+v", got)
	}
}

func TestFetchShortCircuitsWithoutBrowser(t *testing.T) {
	src := New(Options{})
	got, err := src.Fetch(context.Background(), domain.FetchWindow{})
	if !domain.IsKind(err, domain.ErrSourceUnavailable) || !errors.Is(err, errNotConfigured) {
		t.Fatalf("expected not-configured unavailability, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected no candidates")
	}
	if src.TestConnection(context.Background()) {
		t.Fatalf("unconfigured source must not report reachable")
	}
}

func TestFetchTreatsChallengePageAsUnavailable(t *testing.T) {
	renderer := &rendererFake{html: `<html><body><h1>Access denied</h1></body></html>`}
	src := New(Options{Renderer: renderer})

	_, err := src.Fetch(context.Background(), domain.FetchWindow{})
	if !domain.IsKind(err, domain.ErrSourceUnavailable) || !errors.Is(err, errNoPayload) {
		t.Fatalf("expected no-payload unavailability, got %v", err)
	}
}

func TestFetchTreatsRenderErrorAsUnavailable(t *testing.T) {
	renderer := &rendererFake{err: context.DeadlineExceeded}
	src := New(Options{Renderer: renderer})

	_, err := src.Fetch(context.Background(), domain.FetchWindow{})
	if !domain.IsKind(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestTestConnectionRendersOnce(t *testing.T) {
	renderer := &rendererFake{html: `{"rfts": []}`}
	src := New(Options{Renderer: renderer})
	if !src.TestConnection(context.Background()) {
		t.Fatalf("expected reachable")
	}
	if renderer.calls != 1 {
		t.Fatalf("expected one render, got %d", renderer.calls)
	}
}
