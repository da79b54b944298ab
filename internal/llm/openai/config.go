package openai

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// Config for the OpenAI client.
type Config struct {
	APIKey              string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL             string        // default https://api.openai.com/v1/
	Model               string        // chat model used for structured completions
	EmbeddingModel      string        // e.g. "text-embedding-3-large"
	EmbeddingDimensions int           // 0 keeps the model default
	Temperature         float32       // 0..2
	MaxOutputTokens     int           // 0 leaves it to the API
	CallTimeout         time.Duration // per-call deadline applied around every request
	MaxRetries          int           // 0 uses the SDK default of 2, negative disables retries
	RequestsPerSecond   float64       // 0 disables client-side throttling
	HTTPClient          *http.Client
}

type Client struct {
	cfg     Config
	api     openai.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1/"
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-2025-04-14"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-large"
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 2000
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	}
	switch {
	case cfg.MaxRetries < 0:
		opts = append(opts, option.WithMaxRetries(0))
	case cfg.MaxRetries > 0:
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		cfg:     cfg,
		api:     openai.NewClient(opts...),
		limiter: limiter,
		logger:  logger,
	}
}
