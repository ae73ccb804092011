package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adamantic/aussietenders/internal/core/domain"
)

// PipelineMetrics tracks source syncs and enrichment outcomes.
type PipelineMetrics struct {
	registry *prometheus.Registry
	service  string

	syncRuns           *prometheus.CounterVec
	syncRecords        *prometheus.CounterVec
	syncDuration       *prometheus.HistogramVec
	sourceUp           *prometheus.GaugeVec
	enrichmentTotal    *prometheus.CounterVec
	enrichmentDuration *prometheus.HistogramVec
}

// NewPipelineMetrics registers pipeline collectors on registry. A nil
// registry gets a private one, which is what the worker binary serves.
func NewPipelineMetrics(service string, registry *prometheus.Registry) *PipelineMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	syncRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "source_runs_total",
			Help:      "Source sync runs by result.",
		},
		[]string{"service", "source", "result"},
	)
	syncRecords := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Records handled during source sync by kind.",
		},
		[]string{"service", "source", "kind"},
	)
	syncDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "source_duration_seconds",
			Help:      "Source sync duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "source"},
	)
	sourceUp := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "source_up",
			Help:      "Whether the last connection probe reached the source.",
		},
		[]string{"service", "source"},
	)
	enrichmentTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "tenders_total",
			Help:      "Enriched tenders by outcome.",
		},
		[]string{"service", "outcome"},
	)
	enrichmentDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "duration_seconds",
			Help:      "Per-tender enrichment duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(syncRuns, syncRecords, syncDuration, sourceUp, enrichmentTotal, enrichmentDuration)

	return &PipelineMetrics{
		registry:           registry,
		service:            service,
		syncRuns:           syncRuns,
		syncRecords:        syncRecords,
		syncDuration:       syncDuration,
		sourceUp:           sourceUp,
		enrichmentTotal:    enrichmentTotal,
		enrichmentDuration: enrichmentDuration,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) ObserveSourceSync(result domain.SyncResult, duration time.Duration) {
	status := "ok"
	if result.Errors > 0 {
		status = "error"
	}
	m.syncRuns.WithLabelValues(m.service, result.Source, status).Inc()
	m.syncDuration.WithLabelValues(m.service, result.Source).Observe(duration.Seconds())

	for kind, n := range map[string]int{
		"fetched": result.Fetched,
		"added":   result.Added,
		"updated": result.Updated,
		"errors":  result.Errors,
	} {
		if n > 0 {
			m.syncRecords.WithLabelValues(m.service, result.Source, kind).Add(float64(n))
		}
	}
}

func (m *PipelineMetrics) SetSourceUp(source string, up bool) {
	value := 0.0
	if up {
		value = 1
	}
	m.sourceUp.WithLabelValues(m.service, source).Set(value)
}

func (m *PipelineMetrics) ObserveEnrichment(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.enrichmentTotal.WithLabelValues(m.service, outcome).Inc()
	if duration > 0 {
		m.enrichmentDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
	}
}
