package main

import (
	"context"
	"log/slog"
	"os"

	mcpadapter "github.com/adamantic/aussietenders/internal/adapters/mcp"
	"github.com/adamantic/aussietenders/internal/bootstrap"
	"github.com/adamantic/aussietenders/internal/config"
	"github.com/adamantic/aussietenders/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	// stdout carries the MCP protocol.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := bootstrap.New(context.Background(), cfg, logger, bootstrap.Options{Service: "mcp"})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(app.SyncUC, app.EnrichUC, cfg.EnrichBatchSize, logger.With("component", "mcp"))
	if err := srv.ServeStdio(); err != nil {
		logger.Error("mcp_server_failed", "error", err)
	}
}
