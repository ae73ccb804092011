package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adamantic/aussietenders/internal/infrastructure/resilience"
)

const defaultMaxTokens = 1024

// Options.JSONMode asks the server to constrain output to a JSON document.
type Options struct {
	Timeout   time.Duration
	MaxTokens int
	JSONMode  bool
	Executor  *resilience.Executor
}

// Client generates text through the Ollama HTTP API.
type Client struct {
	baseURL    string
	model      string
	maxTokens  int
	jsonMode   bool
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		maxTokens:  opts.MaxTokens,
		jsonMode:   opts.JSONMode,
		httpClient: &http.Client{Timeout: opts.Timeout},
		executor:   opts.Executor,
	}
}

// Generate returns the raw model response for a single prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := resilience.Do(ctx, c.executor, "ollama.generate", func(callCtx context.Context) (string, error) {
		return c.generate(callCtx, prompt)
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return text, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"num_predict": c.maxTokens,
		},
	}
	if c.jsonMode {
		reqBody["format"] = "json"
	}

	var response struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	text := strings.TrimSpace(response.Response)
	if text == "" {
		return "", fmt.Errorf("ollama generate: empty response")
	}
	return text, nil
}
