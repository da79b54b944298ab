// Package bootstrap builds the collaborators shared by procurementd and
// procurectl from a loaded common.Config.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/procurement-intake/internal/classify"
	"github.com/joseph-ayodele/procurement-intake/internal/common"
	"github.com/joseph-ayodele/procurement-intake/internal/embedding"
	"github.com/joseph-ayodele/procurement-intake/internal/embedding/ollama"
	"github.com/joseph-ayodele/procurement-intake/internal/evidence"
	"github.com/joseph-ayodele/procurement-intake/internal/evidence/pgvector"
	"github.com/joseph-ayodele/procurement-intake/internal/evidence/qdrant"
	"github.com/joseph-ayodele/procurement-intake/internal/evidence/sqlite"
	"github.com/joseph-ayodele/procurement-intake/internal/extraction"
	"github.com/joseph-ayodele/procurement-intake/internal/llm/openai"
	"github.com/joseph-ayodele/procurement-intake/internal/pdftext"
	repo "github.com/joseph-ayodele/procurement-intake/internal/repository"
)

// App is the wired set of pipelines and their collaborators.
type App struct {
	Extraction *extraction.Pipeline
	Classify   *classify.Pipeline
	Embedder   embedding.Embedder
	Evidence   evidence.Store
}

// Close releases the evidence store.
func (a *App) Close() error {
	if a == nil || a.Evidence == nil {
		return nil
	}
	return a.Evidence.Close()
}

// ParseLevel maps LOG_LEVEL values onto slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// New wires the OpenAI client, the embedder, the evidence store and both
// pipelines. The caller owns App.Close.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := openai.NewClient(openai.Config{
		APIKey:              cfg.LLM.APIKey,
		BaseURL:             cfg.LLM.BaseURL,
		Model:               cfg.LLM.Model,
		EmbeddingModel:      cfg.LLM.EmbeddingModel,
		EmbeddingDimensions: cfg.Embedding.Dimensions,
		Temperature:         cfg.LLM.Temperature,
		CallTimeout:         cfg.LLM.CallTimeout,
		RequestsPerSecond:   cfg.LLM.RequestsPerSecond,
	}, logger)

	embedder := NewEmbedder(cfg, client, logger)

	store, err := OpenEvidence(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	runner := pdftext.ExecRunner{}
	text := pdftext.NewExtractor(pdftext.Config{
		Pdftotext:      cfg.PDF.Pdftotext,
		MinUsefulChars: cfg.PDF.MinUsefulChars,
	}, runner, logger)
	renderer := pdftext.NewRenderer(pdftext.RenderConfig{
		Pdfinfo:  cfg.PDF.Pdfinfo,
		Pdftoppm: cfg.PDF.Pdftoppm,
		DPI:      cfg.PDF.RenderDPI,
		MaxPages: cfg.PDF.RenderMaxPages,
	}, runner, logger)

	extractor := extraction.NewPipeline(logger, extraction.Config{
		TextParseBudget: cfg.PDF.TextParseBudget,
		CallTimeout:     cfg.LLM.CallTimeout,
	}, text, renderer, client)

	classifier := classify.NewPipeline(logger, classify.Config{
		TopN:                 cfg.Classification.TopN,
		ExamplesPerGroup:     cfg.Classification.ExamplesPerGroup,
		RetrievalParallelism: cfg.Classification.RetrievalParallelism,
		CallTimeout:          cfg.LLM.CallTimeout,
		EvidenceTimeout:      cfg.Evidence.Timeout,
	}, client, embedder, store)

	logger.Info("bootstrap.ready",
		"model", cfg.LLM.Model,
		"embedding_provider", cfg.Embedding.Provider,
		"evidence_backend", cfg.Evidence.Backend,
	)
	return &App{Extraction: extractor, Classify: classifier, Embedder: embedder, Evidence: store}, nil
}

// NewEmbedder returns the configured embedding provider. The OpenAI client
// doubles as the embedder unless Ollama is selected.
func NewEmbedder(cfg *common.Config, client *openai.Client, logger *slog.Logger) embedding.Embedder {
	if cfg.Embedding.Provider == common.EmbeddingProviderOllama {
		return ollama.NewEmbedder(ollama.Config{
			BaseURL: cfg.Embedding.OllamaURL,
			Model:   cfg.Embedding.OllamaModel,
		}, logger)
	}
	return client
}

// OpenEvidence opens the configured evidence backend. The sqlite table is
// always created; postgres and qdrant are provisioned only with EnsureSchema.
func OpenEvidence(ctx context.Context, cfg *common.Config, logger *slog.Logger) (evidence.Store, error) {
	dims := cfg.Embedding.VectorDimensions()

	switch cfg.Evidence.Backend {
	case common.EvidenceBackendSQLite:
		drv, err := repo.OpenSQLite(ctx, cfg.Evidence.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		store := sqlite.New(drv, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil

	case common.EvidenceBackendPostgres:
		pool, err := repo.Open(ctx, repo.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := repo.HealthCheck(ctx, pool, 5*time.Second, logger); err != nil {
			repo.Close(pool, logger)
			return nil, err
		}
		store, err := pgvector.New(pool, cfg.Evidence.Collection, logger)
		if err != nil {
			repo.Close(pool, logger)
			return nil, err
		}
		if cfg.Evidence.EnsureSchema {
			if err := store.EnsureSchema(ctx, dims); err != nil {
				_ = store.Close()
				return nil, err
			}
		}
		return store, nil

	case common.EvidenceBackendQdrant:
		store := qdrant.New(qdrant.Config{
			URL:        cfg.Evidence.QdrantURL,
			APIKey:     cfg.Evidence.QdrantAPIKey,
			Collection: cfg.Evidence.Collection,
			Timeout:    cfg.Evidence.Timeout,
		}, logger)
		if cfg.Evidence.EnsureSchema {
			if err := store.EnsureCollection(ctx, dims); err != nil {
				_ = store.Close()
				return nil, err
			}
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown evidence backend %q", cfg.Evidence.Backend)
}
