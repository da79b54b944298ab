package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"

	"github.com/joseph-ayodele/procurement-intake/internal/common"
	"github.com/joseph-ayodele/procurement-intake/internal/llm"
)

var _ llm.StructuredCompleter = (*Client)(nil)

// CompleteStructured implements llm.StructuredCompleter with chat
// completions constrained by a strict JSON schema response format.
func (c *Client) CompleteStructured(ctx context.Context, req llm.StructuredRequest) ([]byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	log := c.logger.With("req_id", rid, "correlation_id", common.CorrelationIDFromContext(ctx), "schema", req.Name)

	log.Info("llm.complete.start",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"messages", len(req.Messages),
		"attachments", countAttachments(req.Messages),
	)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	if err := c.wait(ctx); err != nil {
		log.Error("llm.complete.throttle_error", "error", err)
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.cfg.Model),
		Messages:            toMessageParams(req.Messages),
		Temperature:         openai.Float(float64(c.cfg.Temperature)),
		MaxCompletionTokens: openai.Int(int64(c.cfg.MaxOutputTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.Name,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		},
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Error("llm.complete.http_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	if len(resp.Choices) == 0 {
		log.Error("llm.complete.no_choices", "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("no choices in openai response")
	}
	msg := resp.Choices[0].Message
	if refusal := strings.TrimSpace(msg.Refusal); refusal != "" {
		log.Warn("llm.complete.refusal", "refusal", refusal, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: %s", common.ErrRefusal, refusal)
	}

	content, err := llm.ValidateOrRepair(req, []byte(strings.TrimSpace(msg.Content)), log)
	if err != nil {
		log.Error("llm.complete.schema_validation_failed",
			"error", err, "content", msg.Content,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	log.Info("llm.complete.ok",
		"bytes", len(content),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	err := c.limiter.Wait(ctx)
	if err != nil && ctx.Err() == nil {
		// the limiter refuses early when the next token lands after the deadline
		if _, ok := ctx.Deadline(); ok {
			return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
	}
	return err
}

func toMessageParams(msgs []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			out = append(out, openai.SystemMessage(m.Text))
			continue
		}
		if len(m.Attachments) == 0 {
			out = append(out, openai.UserMessage(m.Text))
			continue
		}
		parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Attachments)+1)
		for _, a := range m.Attachments {
			switch a.Kind {
			case llm.AttachmentFile:
				parts = append(parts, openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
					FileData: openai.String(llm.DataURL(a.MediaType, a.Data)),
					Filename: openai.String(a.Filename),
				}))
			case llm.AttachmentImage:
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: llm.DataURL(a.MediaType, a.Data),
				}))
			}
		}
		parts = append(parts, openai.TextContentPart(m.Text))
		out = append(out, openai.UserMessage(parts))
	}
	return out
}

func countAttachments(msgs []llm.Message) int {
	n := 0
	for _, m := range msgs {
		n += len(m.Attachments)
	}
	return n
}
