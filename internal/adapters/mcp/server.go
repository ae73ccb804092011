package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/core/ports"
)

const (
	serverName    = "aussietenders"
	serverVersion = "1.0.0"
)

// Server exposes pipeline operations as MCP tools for agent clients.
type Server struct {
	syncer       ports.TenderSynchronizer
	enricher     ports.TenderEnricher
	defaultBatch int
	logger       *slog.Logger
}

func NewServer(syncer ports.TenderSynchronizer, enricher ports.TenderEnricher, defaultBatch int, logger *slog.Logger) *Server {
	if defaultBatch <= 0 {
		defaultBatch = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		syncer:       syncer,
		enricher:     enricher,
		defaultBatch: defaultBatch,
		logger:       logger,
	}
}

func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("sync_tenders",
		mcp.WithDescription("Fetch tenders from every configured source and upsert them. Returns per-source counts."),
	), s.syncTenders)

	srv.AddTool(mcp.NewTool("test_connections",
		mcp.WithDescription("Probe each tender source and report whether it is reachable."),
	), s.testConnections)

	srv.AddTool(mcp.NewTool("enrich_tenders",
		mcp.WithDescription("Summarize and categorize up to limit unenriched tenders with the language model."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of tenders to enrich."),
			mcp.Min(1),
		),
	), s.enrichTenders)

	srv.AddTool(mcp.NewTool("summarize_tender",
		mcp.WithDescription("Return the AI summary for one tender, generating it when missing."),
		mcp.WithNumber("tender_id",
			mcp.Required(),
			mcp.Description("Numeric tender id."),
		),
	), s.summarizeTender)

	return srv
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer())
}

func (s *Server) syncTenders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	results, err := s.syncer.SyncAll(ctx)
	if err != nil {
		if domain.IsKind(err, domain.ErrSyncInProgress) {
			return mcp.NewToolResultError("a sync is already running"), nil
		}
		s.logger.Error("mcp_sync_failed", "error", err)
		return mcp.NewToolResultError("sync failed"), nil
	}
	return jsonResult(results)
}

func (s *Server) testConnections(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.syncer.TestConnections(ctx))
}

func (s *Server) enrichTenders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", s.defaultBatch)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}
	enriched, err := s.enricher.EnrichBatch(ctx, limit)
	if err != nil {
		s.logger.Error("mcp_enrich_failed", "limit", limit, "error", err)
		return mcp.NewToolResultError("enrichment failed"), nil
	}
	return jsonResult(map[string]int{"enriched": enriched})
}

func (s *Server) summarizeTender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("tender_id")
	if err != nil || id <= 0 {
		return mcp.NewToolResultError("tender_id must be a positive integer"), nil
	}
	result, err := s.enricher.EnrichSingle(ctx, int64(id))
	if err != nil {
		s.logger.Error("mcp_summarize_failed", "tender_id", id, "error", err)
		if domain.IsKind(err, domain.ErrTenderNotFound) {
			return mcp.NewToolResultError("tender not found"), nil
		}
		return mcp.NewToolResultError("failed to generate summary"), nil
	}
	return jsonResult(result)
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
