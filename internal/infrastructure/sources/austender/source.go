package austender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/infrastructure/resilience"
	"github.com/adamantic/aussietenders/internal/infrastructure/sources"
)

const SourceName = "AusTender"

const (
	defaultBaseURL  = "https://api.tenders.gov.au"
	findByDatesPath = "/ocds/findByDates/contractPublished"
	dateLayout      = "2006-01-02T15:04:05Z"
	probeWindow     = 24 * time.Hour
)

type Options struct {
	BaseURL  string
	Timeout  time.Duration
	MaxPages int
	Executor *resilience.Executor
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Source reads contract notices from the AusTender OCDS API.
type Source struct {
	baseURL    string
	maxPages   int
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
	clock      func() time.Time
}

func New(opts Options) *Source {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Source{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		maxPages:   opts.MaxPages,
		httpClient: &http.Client{Timeout: opts.Timeout},
		executor:   opts.Executor,
		logger:     opts.Logger.With("source", SourceName),
		clock:      opts.Clock,
	}
}

func (s *Source) Name() string { return SourceName }

// Fetch walks the release pages for the window. A failure on the first page
// makes the source unavailable for this run; a failure on a later page keeps
// what was already mapped.
func (s *Source) Fetch(ctx context.Context, window domain.FetchWindow) ([]domain.TenderCandidate, error) {
	now := s.clock().UTC()
	if window.IsZero() {
		window = domain.FetchWindow{Since: now.AddDate(0, 0, -30), Until: now}
	}

	next := s.windowURL(window)
	candidates := make([]domain.TenderCandidate, 0)
	skipped := 0

	for page := 1; next != "" && page <= s.maxPages; page++ {
		pkg, err := s.fetchPage(ctx, next)
		if err != nil {
			if page == 1 {
				s.logger.Warn("austender_fetch_failed", "url", next, "error", err)
				return nil, sources.Unavailable(SourceName, err)
			}
			s.logger.Warn("austender_page_failed", "page", page, "url", next, "error", err)
			break
		}

		for _, raw := range pkg.Releases {
			candidate, err := decodeRelease(raw, now)
			if err != nil {
				skipped++
				if errors.Is(err, errRejected) {
					s.logger.Debug("austender_release_rejected", "error", err)
				} else {
					s.logger.Warn("austender_release_malformed", "error", err)
				}
				continue
			}
			candidates = append(candidates, candidate)
		}

		next = s.resolveNext(pkg.Links.Next)
		if page == s.maxPages && next != "" {
			s.logger.Warn("austender_page_cap_reached", "max_pages", s.maxPages)
		}
	}

	s.logger.Info("austender_fetch_done", "mapped", len(candidates), "skipped", skipped)
	return candidates, nil
}

// TestConnection issues a one-day query and reports whether it succeeded.
func (s *Source) TestConnection(ctx context.Context) bool {
	now := s.clock().UTC()
	_, err := s.fetchPage(ctx, s.windowURL(domain.FetchWindow{Since: now.Add(-probeWindow), Until: now}))
	if err != nil {
		s.logger.Warn("austender_probe_failed", "error", err)
		return false
	}
	return true
}

func (s *Source) fetchPage(ctx context.Context, pageURL string) (releasePackage, error) {
	body, err := resilience.Do(ctx, s.executor, "austender.fetch", func(callCtx context.Context) ([]byte, error) {
		return sources.GetJSON(callCtx, s.httpClient, pageURL, nil)
	}, sources.ClassifyHTTPError)
	if err != nil {
		return releasePackage{}, err
	}

	var pkg releasePackage
	if err := json.Unmarshal(body, &pkg); err != nil {
		return releasePackage{}, fmt.Errorf("decode release package: %w", err)
	}
	return pkg, nil
}

func decodeRelease(raw json.RawMessage, now time.Time) (domain.TenderCandidate, error) {
	var r release
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.TenderCandidate{}, fmt.Errorf("decode release: %w", err)
	}
	candidate, err := mapRelease(r, now)
	if err != nil {
		return domain.TenderCandidate{}, fmt.Errorf("ocid=%s: %w", r.OCID, err)
	}
	return candidate, nil
}

func (s *Source) windowURL(window domain.FetchWindow) string {
	return fmt.Sprintf("%s%s/%s/%s",
		s.baseURL,
		findByDatesPath,
		window.Since.UTC().Format(dateLayout),
		window.Until.UTC().Format(dateLayout),
	)
}

// resolveNext accepts absolute or base-relative next links.
func (s *Source) resolveNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" {
		return ""
	}
	ref, err := url.Parse(next)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	base, err := url.Parse(s.baseURL + "/")
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
