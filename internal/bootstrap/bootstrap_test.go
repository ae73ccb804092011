package bootstrap

import (
	"io"
	"log/slog"
	"testing"

	"github.com/adamantic/aussietenders/internal/config"
	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/infrastructure/sources/austender"
	"github.com/adamantic/aussietenders/internal/infrastructure/sources/nsw"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildSourcesKeepsSyncOrder(t *testing.T) {
	cfg := config.Config{FeedURL: "https://feed.example.test/api/tenders", FeedName: "State Feed"}

	sources, err := buildSources(cfg, discardLogger())
	if err != nil {
		t.Fatalf("buildSources() error = %v", err)
	}
	want := []string{austender.SourceName, nsw.SourceName, "State Feed"}
	if len(sources) != len(want) {
		t.Fatalf("expected %d sources, got %d", len(want), len(sources))
	}
	for i, name := range want {
		if sources[i].Name() != name {
			t.Fatalf("source %d = %q, want %q", i, sources[i].Name(), name)
		}
	}
}

func TestBuildSourcesSkipsUnconfiguredFeed(t *testing.T) {
	sources, err := buildSources(config.Config{}, discardLogger())
	if err != nil {
		t.Fatalf("buildSources() error = %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected AusTender and NSW only, got %d sources", len(sources))
	}
}

func TestNewGeneratorValidatesProvider(t *testing.T) {
	if _, err := newGenerator(config.Config{LLMProvider: "bard"}, discardLogger()); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown provider, got %v", err)
	}
	if _, err := newGenerator(config.Config{LLMProvider: config.LLMProviderOpenAI}, discardLogger()); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without key or base url, got %v", err)
	}
	gen, err := newGenerator(config.Config{LLMProvider: config.LLMProviderOllama, OllamaURL: "http://localhost:11434", OllamaModel: "llama3.1:8b"}, discardLogger())
	if err != nil || gen == nil {
		t.Fatalf("expected ollama generator, got %v, %v", gen, err)
	}
}
