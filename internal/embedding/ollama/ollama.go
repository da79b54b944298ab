package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/procurement-intake/internal/embedding"
	"github.com/joseph-ayodele/procurement-intake/internal/llm"
)

var _ embedding.Embedder = (*Embedder)(nil)

// Config for the Ollama embedder.
type Config struct {
	BaseURL string        // default http://localhost:11434
	Model   string        // default nomic-embed-text
	Timeout time.Duration // default 30s
}

// Embedder calls Ollama's /api/embeddings endpoint.
type Embedder struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewEmbedder(cfg Config, logger *slog.Logger) *Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	url := strings.TrimRight(e.cfg.BaseURL, "/") + "/api/embeddings"
	raw, _, err := llm.SendJSON(ctx, e.http, url, embedRequest{Model: e.cfg.Model, Prompt: text}, nil, e.logger)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	var out embedResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode ollama embeddings: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding from ollama model %s", e.cfg.Model)
	}
	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
