// Package sqlite stores evidence in a local SQLite file and ranks it in
// process by cosine similarity.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/procurement-intake/internal/entity"
	"github.com/joseph-ayodele/procurement-intake/internal/evidence"
)

const table = "evidence"

const createTable = `CREATE TABLE IF NOT EXISTS evidence (
	request_id TEXT PRIMARY KEY,
	tag        TEXT NOT NULL,
	text       TEXT NOT NULL,
	vector     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`

const createTagIndex = `CREATE INDEX IF NOT EXISTS evidence_tag_idx ON evidence (tag)`

var _ evidence.Store = (*Store)(nil)

type Store struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func New(drv *entsql.Driver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{drv: drv, logger: logger}
}

// EnsureSchema creates the evidence table and its tag index.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createTable, createTagIndex} {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("ensure evidence schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int, tag string) ([]entity.EvidenceExample, error) {
	sel := entsql.Dialect(dialect.SQLite).
		Select("request_id", "tag", "text", "vector").
		From(entsql.Table(table))
	if tag != "" {
		sel.Where(entsql.EQ("tag", tag))
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	var recs []evidence.Record
	for rows.Next() {
		var (
			rec evidence.Record
			raw string
		)
		if err := rows.Scan(&rec.RequestID, &rec.Tag, &rec.Text, &raw); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &rec.Vector); err != nil {
			s.logger.Warn("evidence.sqlite.bad_vector", "request_id", rec.RequestID, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}

	out := evidence.TopK(vector, recs, topK)
	s.logger.Debug("evidence.sqlite.search", "tag", tag, "candidates", len(recs), "returned", len(out))
	return out, nil
}

func (s *Store) Add(ctx context.Context, rec evidence.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	vec, err := json.Marshal(rec.Vector)
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}
	query, args := entsql.Dialect(dialect.SQLite).
		Insert(table).
		Columns("request_id", "tag", "text", "vector", "created_at").
		Values(rec.RequestID, rec.Tag, rec.Text, string(vec), time.Now().UTC()).
		OnConflict(entsql.ConflictColumns("request_id"), entsql.ResolveWithNewValues()).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	s.logger.Info("evidence.sqlite.added", "request_id", rec.RequestID, "tag", rec.Tag)
	return nil
}

func (s *Store) Delete(ctx context.Context, requestID string) error {
	query, args := entsql.Dialect(dialect.SQLite).
		Delete(table).
		Where(entsql.EQ("request_id", requestID)).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	s.logger.Info("evidence.sqlite.deleted", "request_id", requestID)
	return nil
}

func (s *Store) Relabel(ctx context.Context, requestID, tag string) error {
	query, args := entsql.Dialect(dialect.SQLite).
		Update(table).
		Set("tag", tag).
		Where(entsql.EQ("request_id", requestID)).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("relabel evidence: %w", err)
	}
	s.logger.Info("evidence.sqlite.relabeled", "request_id", requestID, "tag", tag)
	return nil
}

func (s *Store) Close() error { return s.drv.Close() }
