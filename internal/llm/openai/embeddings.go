package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"

	"github.com/joseph-ayodele/procurement-intake/internal/common"
)

// Embed returns one embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	log := c.logger.With("correlation_id", common.CorrelationIDFromContext(ctx), "model", c.cfg.EmbeddingModel)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	}
	if c.cfg.EmbeddingDimensions > 0 {
		params.Dimensions = openai.Int(int64(c.cfg.EmbeddingDimensions))
	}

	resp, err := c.api.Embeddings.New(ctx, params)
	if err != nil {
		log.Error("llm.embed.http_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		log.Error("llm.embed.empty", "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("empty embedding in openai response")
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	log.Debug("llm.embed.ok", "dims", len(vec), "elapsed_ms", time.Since(start).Milliseconds())
	return vec, nil
}
