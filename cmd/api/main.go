package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/adamantic/aussietenders/internal/adapters/http"
	"github.com/adamantic/aussietenders/internal/bootstrap"
	"github.com/adamantic/aussietenders/internal/config"
	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/observability/logging"
	"github.com/adamantic/aussietenders/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{
		Service:  "api",
		Registry: httpMetrics.Registry(),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(app.SyncUC, app.EnrichUC, app.Repo, httpadapter.Options{
		AdminRatePerMinute: cfg.AdminRateLimitPerMinute,
		AdminBurst:         cfg.AdminRateLimitBurst,
		DefaultEnrichLimit: cfg.EnrichBatchSize,
		Metrics:            httpMetrics,
		Logger:             logger.With("component", "http"),
	}).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	if cfg.SyncOnStartup {
		go runSync(ctx, app, logger, "startup")
	}
	if cfg.SyncInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.SyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					runSync(ctx, app, logger, "interval")
				}
			}
		}()
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}

func runSync(ctx context.Context, app *bootstrap.App, logger *slog.Logger, reason string) {
	results, err := app.SyncUC.SyncAll(ctx)
	switch {
	case domain.IsKind(err, domain.ErrSyncInProgress):
		logger.Info("scheduled_sync_skipped", "reason", reason)
		return
	case err != nil:
		logger.Error("scheduled_sync_failed", "reason", reason, "error", err)
		return
	}

	var added, updated, failed int
	for _, r := range results {
		added += r.Added
		updated += r.Updated
		failed += r.Errors
	}
	logger.Info("scheduled_sync_done",
		"reason", reason,
		"sources", len(results),
		"added", added,
		"updated", updated,
		"errors", failed,
	)
}
