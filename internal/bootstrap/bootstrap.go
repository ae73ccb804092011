package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adamantic/aussietenders/internal/config"
	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/core/ports"
	"github.com/adamantic/aussietenders/internal/core/usecase"
	"github.com/adamantic/aussietenders/internal/infrastructure/llm/ollama"
	"github.com/adamantic/aussietenders/internal/infrastructure/llm/openai"
	"github.com/adamantic/aussietenders/internal/infrastructure/queue/nats"
	"github.com/adamantic/aussietenders/internal/infrastructure/repository/postgres"
	"github.com/adamantic/aussietenders/internal/infrastructure/resilience"
	"github.com/adamantic/aussietenders/internal/infrastructure/sources/austender"
	"github.com/adamantic/aussietenders/internal/infrastructure/sources/feed"
	"github.com/adamantic/aussietenders/internal/infrastructure/sources/nsw"
	"github.com/adamantic/aussietenders/internal/observability/metrics"
)

type Options struct {
	Service string
	// Registry receives pipeline collectors; nil gives them a private registry.
	Registry *prometheus.Registry
	// RequireQueue connects to NATS even when enrichment runs in-process.
	RequireQueue bool
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Repo     *postgres.TenderRepository
	SyncUC   *usecase.SyncTendersUseCase
	EnrichUC *usecase.EnrichTendersUseCase
	Queue    *nats.Queue
	Runner   *usecase.BackgroundEnrichmentRunner
	Metrics  *metrics.PipelineMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Service == "" {
		opts.Service = "api"
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewTenderRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	pipelineMetrics := metrics.NewPipelineMetrics(opts.Service, opts.Registry)

	generator, err := newGenerator(cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init language model: %w", err)
	}
	enrichUC := usecase.NewEnrichTendersUseCase(
		repo,
		generator,
		domain.Categories(),
		pipelineMetrics,
		logger.With("component", "enrichment"),
		usecase.EnrichOptions{ItemDelay: cfg.EnrichItemDelay},
	).WithLock(postgres.NewAdvisoryLock(db, postgres.EnrichmentLockKey))

	var queue *nats.Queue
	if opts.RequireQueue || cfg.EnrichmentMode == config.EnrichmentModeNATS {
		queue, err = nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()).WithLogger(logger),
			Logger:             logger.With("component", "queue"),
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
	}

	var (
		trigger ports.EnrichmentTrigger
		runner  *usecase.BackgroundEnrichmentRunner
	)
	switch {
	case !cfg.EnrichOnSyncTrigger:
	case cfg.EnrichmentMode == config.EnrichmentModeNATS:
		trigger = queue
	default:
		runner = usecase.NewBackgroundEnrichmentRunner(enrichUC, cfg.EnrichBatchTimeout, logger.With("component", "enrichment_runner"))
		trigger = runner
	}

	sources, err := buildSources(cfg, logger)
	if err != nil {
		if queue != nil {
			queue.Close()
		}
		_ = db.Close()
		return nil, fmt.Errorf("init sources: %w", err)
	}
	syncUC := usecase.NewSyncTendersUseCase(
		sources,
		usecase.NewUpsertTenderUseCase(repo),
		trigger,
		pipelineMetrics,
		logger.With("component", "sync"),
		usecase.SyncOptions{
			Window:              cfg.SyncWindow(),
			EnrichmentBatchSize: cfg.EnrichBatchSize,
		},
	).WithLock(postgres.NewAdvisoryLock(db, postgres.SyncLockKey))

	return &App{
		Config:   cfg,
		Logger:   logger,
		Repo:     repo,
		SyncUC:   syncUC,
		EnrichUC: enrichUC,
		Queue:    queue,
		Runner:   runner,
		Metrics:  pipelineMetrics,

		closeFn: func() {
			if runner != nil {
				waitForRunner(runner, logger)
			}
			if queue != nil {
				queue.Close()
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// buildSources returns adapters in sync order: AusTender, NSW, then the
// optional scraped feed.
func buildSources(cfg config.Config, logger *slog.Logger) ([]ports.TenderSource, error) {
	sourceExecutor := func() *resilience.Executor {
		return resilience.NewExecutor(resilience.SourceConfig()).WithLogger(logger)
	}

	sources := []ports.TenderSource{
		austender.New(austender.Options{
			BaseURL:  cfg.AusTenderBaseURL,
			Timeout:  cfg.AusTenderTimeout,
			MaxPages: cfg.AusTenderMaxPages,
			Executor: sourceExecutor(),
			Logger:   logger,
		}),
	}

	nswOpts := nsw.Options{
		HomeURL:       cfg.NSWHomeURL,
		APIURL:        cfg.NSWAPIURL,
		ChallengeWait: cfg.NSWChallengeWait,
		Timeout:       cfg.NSWTimeout,
		Logger:        logger,
	}
	if cfg.NSWBrowserEnabled() {
		nswOpts.Renderer = nsw.NewChromeRenderer(cfg.NSWBrowserWSURL)
	}
	sources = append(sources, nsw.New(nswOpts))

	if cfg.FeedURL != "" {
		feedSource, err := feed.New(feed.Options{
			Name:     cfg.FeedName,
			URL:      cfg.FeedURL,
			HomeURL:  cfg.FeedHomeURL,
			Timeout:  cfg.FeedTimeout,
			Executor: sourceExecutor(),
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		sources = append(sources, feedSource)
	}
	return sources, nil
}

func newGenerator(cfg config.Config, logger *slog.Logger) (ports.TextGenerator, error) {
	executor := resilience.NewExecutor(resilience.ModelConfig()).WithLogger(logger)

	switch cfg.LLMProvider {
	case config.LLMProviderOllama:
		return ollama.New(cfg.OllamaURL, cfg.OllamaModel, ollama.Options{
			Timeout:   cfg.LLMTimeout,
			MaxTokens: cfg.LLMMaxTokens,
			JSONMode:  true,
			Executor:  executor,
		}), nil
	case config.LLMProviderOpenAI:
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "openai provider", errors.New("OPENAI_API_KEY or OPENAI_BASE_URL is required"))
		}
		return openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, openai.Options{
			BaseURL:   cfg.OpenAIBaseURL,
			Timeout:   cfg.LLMTimeout,
			MaxTokens: cfg.LLMMaxTokens,
			Executor:  executor,
		}), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "llm provider", fmt.Errorf("unknown provider %q", cfg.LLMProvider))
	}
}

// shutdownGrace bounds how long Close waits for an in-flight enrichment batch.
const shutdownGrace = 30 * time.Second

func waitForRunner(runner *usecase.BackgroundEnrichmentRunner, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		runner.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		logger.Warn("enrichment_batch_abandoned_at_shutdown", "grace", shutdownGrace.String())
	}
}
