// Package qdrant talks to a Qdrant collection over its REST API.
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/procurement-intake/internal/entity"
	"github.com/joseph-ayodele/procurement-intake/internal/evidence"
	"github.com/joseph-ayodele/procurement-intake/internal/llm"
)

const (
	payloadRequestID = "request_id"
	payloadTag       = "commodity_group"
	payloadText      = "embedded_request_context"
)

var _ evidence.Store = (*Store)(nil)

type Config struct {
	URL        string        // default http://localhost:6333
	APIKey     string        // sent as api-key when set
	Collection string        // default procurement_request_context
	Timeout    time.Duration // default 5s
}

type Store struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Store {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:6333"
	}
	if cfg.Collection == "" {
		cfg.Collection = "procurement_request_context"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// PointID derives a stable point id from a request id, since Qdrant only
// accepts integers and UUIDs.
func PointID(requestID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(requestID)).String()
}

type match struct {
	Value string `json:"value"`
}

type condition struct {
	Key   string `json:"key"`
	Match match  `json:"match"`
}

type filter struct {
	Must []condition `json:"must"`
}

func fieldFilter(key, value string) *filter {
	return &filter{Must: []condition{{Key: key, Match: match{Value: value}}}}
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	Filter      *filter   `json:"filter,omitempty"`
	WithPayload bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []struct {
		Score   float64           `json:"score"`
		Payload map[string]string `json:"payload"`
	} `json:"result"`
}

type point struct {
	ID      string            `json:"id"`
	Vector  []float32         `json:"vector"`
	Payload map[string]string `json:"payload"`
}

func (s *Store) endpoint(path string) string {
	return strings.TrimRight(s.cfg.URL, "/") + "/collections/" + url.PathEscape(s.cfg.Collection) + path
}

func (s *Store) headers() map[string]string {
	if s.cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"api-key": s.cfg.APIKey}
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int, tag string) ([]entity.EvidenceExample, error) {
	req := searchRequest{Vector: vector, Limit: topK, WithPayload: true}
	if tag != "" {
		req.Filter = fieldFilter(payloadTag, tag)
	}
	raw, _, err := llm.DoJSON(ctx, s.http, http.MethodPost, s.endpoint("/points/search"), req, s.headers(), s.logger)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("qdrant decode: %w", err)
	}
	out := make([]entity.EvidenceExample, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, entity.EvidenceExample{
			Text:       r.Payload[payloadText],
			Tag:        r.Payload[payloadTag],
			Similarity: r.Score,
		})
	}
	s.logger.Debug("evidence.qdrant.search", "tag", tag, "returned", len(out))
	return out, nil
}

func (s *Store) Add(ctx context.Context, rec evidence.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	body := map[string]any{"points": []point{{
		ID:     PointID(rec.RequestID),
		Vector: rec.Vector,
		Payload: map[string]string{
			payloadRequestID: rec.RequestID,
			payloadTag:       rec.Tag,
			payloadText:      rec.Text,
		},
	}}}
	if _, _, err := llm.DoJSON(ctx, s.http, http.MethodPut, s.endpoint("/points?wait=true"), body, s.headers(), s.logger); err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	s.logger.Info("evidence.qdrant.added", "request_id", rec.RequestID, "tag", rec.Tag)
	return nil
}

func (s *Store) Delete(ctx context.Context, requestID string) error {
	body := map[string]any{"filter": fieldFilter(payloadRequestID, requestID)}
	if _, _, err := llm.DoJSON(ctx, s.http, http.MethodPost, s.endpoint("/points/delete?wait=true"), body, s.headers(), s.logger); err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	s.logger.Info("evidence.qdrant.deleted", "request_id", requestID)
	return nil
}

func (s *Store) Relabel(ctx context.Context, requestID, tag string) error {
	body := map[string]any{
		"payload": map[string]string{payloadTag: tag},
		"filter":  fieldFilter(payloadRequestID, requestID),
	}
	if _, _, err := llm.DoJSON(ctx, s.http, http.MethodPost, s.endpoint("/points/payload?wait=true"), body, s.headers(), s.logger); err != nil {
		return fmt.Errorf("qdrant relabel: %w", err)
	}
	s.logger.Info("evidence.qdrant.relabeled", "request_id", requestID, "tag", tag)
	return nil
}

// EnsureCollection creates the collection with cosine distance if it is missing.
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	_, status, err := llm.DoJSON(ctx, s.http, http.MethodGet, s.endpoint(""), nil, s.headers(), s.logger)
	if err == nil {
		return nil
	}
	if status != http.StatusNotFound {
		return fmt.Errorf("qdrant collection lookup: %w", err)
	}
	body := map[string]any{"vectors": map[string]any{"size": dims, "distance": "Cosine"}}
	if _, _, err := llm.DoJSON(ctx, s.http, http.MethodPut, s.endpoint(""), body, s.headers(), s.logger); err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	s.logger.Info("evidence.qdrant.collection_created", "collection", s.cfg.Collection, "dims", dims)
	return nil
}

func (s *Store) Close() error {
	s.http.CloseIdleConnections()
	return nil
}
