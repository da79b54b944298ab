package bootstrap

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/procurement-intake/internal/common"
	"github.com/joseph-ayodele/procurement-intake/internal/embedding/ollama"
	"github.com/joseph-ayodele/procurement-intake/internal/evidence"
	"github.com/joseph-ayodele/procurement-intake/internal/llm/openai"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestNewEmbedder(t *testing.T) {
	client := openai.NewClient(openai.Config{APIKey: "k"}, nil)

	cfg := common.LoadConfig()
	cfg.Embedding.Provider = common.EmbeddingProviderOpenAI
	assert.Same(t, client, NewEmbedder(cfg, client, nil))

	cfg.Embedding.Provider = common.EmbeddingProviderOllama
	_, ok := NewEmbedder(cfg, client, nil).(*ollama.Embedder)
	assert.True(t, ok)
}

func TestOpenEvidence_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := common.LoadConfig()
	cfg.Evidence.Backend = common.EvidenceBackendSQLite
	cfg.Evidence.SQLitePath = ":memory:"

	store, err := OpenEvidence(ctx, cfg, nil)
	require.NoError(t, err)
	app := &App{Evidence: store}
	defer func() { assert.NoError(t, app.Close()) }()

	require.NoError(t, store.Add(ctx, evidence.Record{
		RequestID: "r1", Tag: "7", Text: "TITLE: laptops", Vector: []float32{1, 0},
	}))
	got, err := store.Search(ctx, []float32{1, 0}, 1, "7")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "TITLE: laptops", got[0].Text)
}

func TestOpenEvidence_UnknownBackend(t *testing.T) {
	cfg := common.LoadConfig()
	cfg.Evidence.Backend = "redis"
	_, err := OpenEvidence(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown evidence backend")
}

func TestAppClose_Nil(t *testing.T) {
	var app *App
	assert.NoError(t, app.Close())
}
