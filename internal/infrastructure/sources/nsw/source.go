package nsw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/infrastructure/sources"
)

const SourceName = "NSW eTendering"

const (
	defaultHomeURL = "https://tenders.nsw.gov.au/"
	defaultAPIURL  = "https://tenders.nsw.gov.au/?event=public.api.tender.search&ResultsPerPage=100"
)

var (
	errNotConfigured = errors.New("no browser endpoint configured")
	errNoPayload     = errors.New("rendered page carries no json payload")
)

// Options.Renderer is nil when neither a remote browser nor a local Chrome
// is configured; Fetch then short-circuits.
type Options struct {
	HomeURL       string
	APIURL        string
	Renderer      PageRenderer
	ChallengeWait time.Duration
	Timeout       time.Duration
	Logger        *slog.Logger
	Clock         func() time.Time
}

// Source reads open tenders from NSW eTendering. The API sits behind a WAF
// that rejects plain HTTP clients, so requests go through a real browser.
type Source struct {
	homeURL       string
	apiURL        string
	renderer      PageRenderer
	challengeWait time.Duration
	timeout       time.Duration
	logger        *slog.Logger
	clock         func() time.Time
}

func New(opts Options) *Source {
	if opts.HomeURL == "" {
		opts.HomeURL = defaultHomeURL
	}
	if opts.APIURL == "" {
		opts.APIURL = defaultAPIURL
	}
	if opts.ChallengeWait < 0 {
		opts.ChallengeWait = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Source{
		homeURL:       opts.HomeURL,
		apiURL:        opts.APIURL,
		renderer:      opts.Renderer,
		challengeWait: opts.ChallengeWait,
		timeout:       opts.Timeout,
		logger:        opts.Logger.With("source", SourceName),
		clock:         opts.Clock,
	}
}

func (s *Source) Name() string { return SourceName }

// Fetch ignores the window: the search endpoint has no date filter.
func (s *Source) Fetch(ctx context.Context, _ domain.FetchWindow) ([]domain.TenderCandidate, error) {
	if s.renderer == nil {
		s.logger.Warn("nsw_browser_not_configured",
			"guidance", "set NSW_BROWSER_WS_URL to a remote Chrome DevTools endpoint or NSW_BROWSER_LOCAL=true to launch headless Chrome",
			"manual_url", s.homeURL,
		)
		return nil, sources.Unavailable(SourceName, errNotConfigured)
	}

	payload, err := s.render(ctx)
	if err != nil {
		s.logger.Warn("nsw_fetch_failed", "error", err)
		return nil, sources.Unavailable(SourceName, err)
	}

	var resp searchResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		s.logger.Warn("nsw_payload_invalid", "error", err)
		return nil, sources.Unavailable(SourceName, fmt.Errorf("decode search response: %w", err))
	}

	records := resp.RFTs
	if len(records) == 0 {
		records = resp.RFT
	}

	now := s.clock().UTC()
	candidates := make([]domain.TenderCandidate, 0, len(records))
	skipped := 0
	for _, raw := range records {
		var r rft
		if err := json.Unmarshal(raw, &r); err != nil {
			skipped++
			s.logger.Warn("nsw_rft_malformed", "error", err)
			continue
		}
		candidate, err := mapRFT(r, now)
		if err != nil {
			skipped++
			if errors.Is(err, errRejected) {
				s.logger.Debug("nsw_rft_rejected", "rft", r.RFTUUID, "error", err)
			} else {
				s.logger.Warn("nsw_rft_malformed", "rft", r.RFTUUID, "error", err)
			}
			continue
		}
		candidates = append(candidates, candidate)
	}

	s.logger.Info("nsw_fetch_done", "mapped", len(candidates), "skipped", skipped)
	return candidates, nil
}

// TestConnection renders the API page once and checks that it yields JSON.
func (s *Source) TestConnection(ctx context.Context) bool {
	if s.renderer == nil {
		return false
	}
	if _, err := s.render(ctx); err != nil {
		s.logger.Warn("nsw_probe_failed", "error", err)
		return false
	}
	return true
}

func (s *Source) render(ctx context.Context) (string, error) {
	renderCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	html, err := s.renderer.Render(renderCtx, s.homeURL, s.apiURL, s.challengeWait)
	if err != nil {
		return "", err
	}
	return extractPayload(html)
}

// extractPayload pulls the JSON document out of the browser's rendering of
// a JSON response, which wraps the body in a <pre> element.
func extractPayload(html string) (string, error) {
	trimmed := strings.TrimSpace(html)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse rendered page: %w", err)
	}
	text := strings.TrimSpace(doc.Find("pre").First().Text())
	if text == "" {
		text = strings.TrimSpace(doc.Find("body").Text())
	}
	if !strings.HasPrefix(text, "{") {
		return "", errNoPayload
	}
	return text, nil
}
