package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/core/ports"
	"github.com/adamantic/aussietenders/internal/observability/metrics"
)

const serviceName = "api"

type Options struct {
	// AdminRatePerMinute <= 0 disables the admin limiter.
	AdminRatePerMinute int
	AdminBurst         int
	DefaultEnrichLimit int
	MaxSummarizing     int
	SummarizeQueueWait time.Duration
	Metrics            *metrics.HTTPServerMetrics
	Logger             *slog.Logger
}

type Router struct {
	syncer   ports.TenderSynchronizer
	enricher ports.TenderEnricher
	reader   ports.TenderReader
	opts     Options
	logger   *slog.Logger
}

func NewRouter(
	syncer ports.TenderSynchronizer,
	enricher ports.TenderEnricher,
	reader ports.TenderReader,
	opts Options,
) *Router {
	if opts.AdminBurst <= 0 {
		opts.AdminBurst = 1
	}
	if opts.DefaultEnrichLimit <= 0 {
		opts.DefaultEnrichLimit = 10
	}
	if opts.MaxSummarizing <= 0 {
		opts.MaxSummarizing = 2
	}
	if opts.SummarizeQueueWait <= 0 {
		opts.SummarizeQueueWait = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		syncer:   syncer,
		enricher: enricher,
		reader:   reader,
		opts:     opts,
		logger:   logger,
	}
}

func (rt *Router) Handler() http.Handler {
	var limiter *rate.Limiter
	if rt.opts.AdminRatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rt.opts.AdminRatePerMinute)), rt.opts.AdminBurst)
	}
	onLimited := func(r *http.Request) {
		if rt.opts.Metrics != nil {
			rt.opts.Metrics.RecordRateLimited(serviceName, r.URL.Path)
		}
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return rateLimitMiddleware(limiter, onLimited, h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("POST /v1/admin/sync", admin(rt.runSync))
	mux.Handle("GET /v1/admin/sync-status", admin(rt.syncStatus))
	mux.Handle("GET /v1/admin/connections", admin(rt.connections))
	mux.Handle("POST /v1/admin/enrich", admin(rt.enrichBatch))
	mux.HandleFunc("GET /v1/tenders", rt.listTenders)
	mux.HandleFunc("GET /v1/tenders/{id}", rt.getTender)
	mux.Handle("POST /v1/tenders/{id}/summarize",
		backpressureMiddleware(http.HandlerFunc(rt.summarizeTender), rt.opts.MaxSummarizing, rt.opts.SummarizeQueueWait))

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
		handler = rt.opts.Metrics.Middleware(serviceName, mux)
	}
	return requestIDMiddleware(accessLogMiddleware(rt.logger, handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) runSync(w http.ResponseWriter, r *http.Request) {
	results, err := rt.syncer.SyncAll(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, "sync", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (rt *Router) syncStatus(w http.ResponseWriter, r *http.Request) {
	total, err := rt.reader.Count(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, "count tenders", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_tenders": total,
		"sources":       rt.syncer.TestConnections(r.Context()),
	})
}

func (rt *Router) connections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.syncer.TestConnections(r.Context()))
}

func (rt *Router) enrichBatch(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", rt.opts.DefaultEnrichLimit)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	enriched, err := rt.enricher.EnrichBatch(r.Context(), limit)
	if err != nil {
		rt.writeDomainError(w, r, "enrich batch", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"enriched": enriched})
}

func (rt *Router) listTenders(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}

	q := r.URL.Query()
	result, err := rt.reader.List(r.Context(), domain.TenderFilter{
		Search:   strings.TrimSpace(q.Get("search")),
		Source:   strings.TrimSpace(q.Get("source")),
		Category: strings.TrimSpace(q.Get("category")),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		rt.writeDomainError(w, r, "list tenders", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getTender(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tender, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		rt.writeDomainError(w, r, "get tender", err)
		return
	}
	writeJSON(w, http.StatusOK, tender)
}

// summarizeTender never exposes model or store errors to the caller.
func (rt *Router) summarizeTender(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := rt.enricher.EnrichSingle(r.Context(), id)
	if err != nil {
		rt.logger.Error("summarize_failed",
			"request_id", requestIDFromContext(r.Context()),
			"tender_id", id,
			"error", err,
		)
		if domain.IsKind(err, domain.ErrTenderNotFound) {
			writeError(w, http.StatusNotFound, "tender not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to generate summary")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"operation", op,
			"error", err,
		)
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeError(w, status, message)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "tender id must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
