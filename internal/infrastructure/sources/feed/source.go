package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/infrastructure/resilience"
	"github.com/adamantic/aussietenders/internal/infrastructure/sources"
)

const (
	defaultName     = "Tender Feed"
	defaultLocation = "National"
	queryLayout     = "2006-01-02"
)

type Options struct {
	Name     string
	URL      string
	HomeURL  string
	Timeout  time.Duration
	Executor *resilience.Executor
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Source reads a JSON tender feed that serves plain HTTP clients once a
// session cookie from its home page is present.
type Source struct {
	name       string
	feedURL    string
	homeURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
	clock      func() time.Time
}

func New(opts Options) (*Source, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new feed source", errors.New("feed url is required"))
	}
	if opts.Name == "" {
		opts.Name = defaultName
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Source{
		name:       opts.Name,
		feedURL:    opts.URL,
		homeURL:    opts.HomeURL,
		httpClient: &http.Client{Timeout: opts.Timeout, Jar: jar},
		executor:   opts.Executor,
		logger:     opts.Logger.With("source", opts.Name),
		clock:      opts.Clock,
	}, nil
}

func (s *Source) Name() string { return s.name }

func (s *Source) Fetch(ctx context.Context, window domain.FetchWindow) ([]domain.TenderCandidate, error) {
	s.warmUp(ctx)

	body, err := s.get(ctx, s.windowURL(window))
	if err != nil {
		s.logger.Warn("feed_fetch_failed", "error", err)
		return nil, sources.Unavailable(s.name, err)
	}

	records, err := decodeRecords(body)
	if err != nil {
		s.logger.Warn("feed_payload_invalid", "error", err)
		return nil, sources.Unavailable(s.name, err)
	}

	now := s.clock().UTC()
	candidates := make([]domain.TenderCandidate, 0, len(records))
	skipped := 0
	for _, raw := range records {
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped++
			s.logger.Warn("feed_record_malformed", "error", err)
			continue
		}
		candidate, err := mapRecord(rec, s.name, now)
		if err != nil {
			skipped++
			if errors.Is(err, errRejected) {
				s.logger.Debug("feed_record_rejected", "id", rec.ID, "error", err)
			} else {
				s.logger.Warn("feed_record_malformed", "id", rec.ID, "error", err)
			}
			continue
		}
		candidates = append(candidates, candidate)
	}

	s.logger.Info("feed_fetch_done", "mapped", len(candidates), "skipped", skipped)
	return candidates, nil
}

// TestConnection requests a one-day window.
func (s *Source) TestConnection(ctx context.Context) bool {
	now := s.clock().UTC()
	s.warmUp(ctx)
	if _, err := s.get(ctx, s.windowURL(domain.FetchWindow{Since: now.Add(-24 * time.Hour), Until: now})); err != nil {
		s.logger.Warn("feed_probe_failed", "error", err)
		return false
	}
	return true
}

// warmUp loads the home page so the cookie jar holds a session.
// Failures are logged only; the feed call reports the real outcome.
func (s *Source) warmUp(ctx context.Context) {
	if s.homeURL == "" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.homeURL, nil)
	if err != nil {
		s.logger.Warn("feed_warmup_failed", "error", err)
		return
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("feed_warmup_failed", "error", err)
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}

func (s *Source) get(ctx context.Context, target string) ([]byte, error) {
	return resilience.Do(ctx, s.executor, "feed.fetch", func(callCtx context.Context) ([]byte, error) {
		return sources.GetJSON(callCtx, s.httpClient, target, nil)
	}, sources.ClassifyHTTPError)
}

func (s *Source) windowURL(window domain.FetchWindow) string {
	if window.IsZero() {
		return s.feedURL
	}
	u, err := url.Parse(s.feedURL)
	if err != nil {
		return s.feedURL
	}
	q := u.Query()
	q.Set("since", window.Since.UTC().Format(queryLayout))
	q.Set("until", window.Until.UTC().Format(queryLayout))
	u.RawQuery = q.Encode()
	return u.String()
}

// decodeRecords accepts a bare array or an object wrapping one.
func decodeRecords(body []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode feed array: %w", err)
		}
		return list, nil
	}

	var wrapped struct {
		Tenders []json.RawMessage `json:"tenders"`
		Data    []json.RawMessage `json:"data"`
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode feed object: %w", err)
	}
	switch {
	case wrapped.Tenders != nil:
		return wrapped.Tenders, nil
	case wrapped.Data != nil:
		return wrapped.Data, nil
	default:
		return wrapped.Results, nil
	}
}
