// Package pgvector stores evidence in Postgres and lets the pgvector
// extension rank it by cosine distance.
package pgvector

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/joseph-ayodele/procurement-intake/internal/entity"
	"github.com/joseph-ayodele/procurement-intake/internal/evidence"
)

const DefaultTable = "procurement_request_context"

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

var _ evidence.Store = (*Store)(nil)

type Store struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

// New returns a Store over table, which must be a plain SQL identifier.
func New(pool *pgxpool.Pool, table string, logger *slog.Logger) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid evidence table name %q", table)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, table: table, logger: logger}, nil
}

// SchemaStatements returns the DDL for a table holding dims-wide vectors.
func (s *Store) SchemaStatements(dims int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	request_id TEXT PRIMARY KEY,
	tag        TEXT NOT NULL,
	text       TEXT NOT NULL,
	embedding  vector(%d) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table, dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_tag_idx ON %s (tag)`, s.table, s.table),
	}
}

// EnsureSchema creates the extension, table and tag index.
func (s *Store) EnsureSchema(ctx context.Context, dims int) error {
	for _, stmt := range s.SchemaStatements(dims) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure evidence schema: %w", err)
		}
	}
	return nil
}

// searchSQL treats an empty $2 as "any tag".
func (s *Store) searchSQL() string {
	return fmt.Sprintf(`SELECT text, tag, 1 - (embedding <=> $1::vector) AS similarity
FROM %s
WHERE ($2 = '' OR tag = $2)
ORDER BY embedding <=> $1::vector
LIMIT $3`, s.table)
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int, tag string) ([]entity.EvidenceExample, error) {
	rows, err := s.pool.Query(ctx, s.searchSQL(), pgv.NewVector(vector), tag, topK)
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	var out []entity.EvidenceExample
	for rows.Next() {
		var ex entity.EvidenceExample
		if err := rows.Scan(&ex.Text, &ex.Tag, &ex.Similarity); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}
	s.logger.Debug("evidence.pgvector.search", "tag", tag, "returned", len(out))
	return out, nil
}

func (s *Store) Add(ctx context.Context, rec evidence.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (request_id, tag, text, embedding)
VALUES ($1, $2, $3, $4::vector)
ON CONFLICT (request_id) DO UPDATE
SET tag = EXCLUDED.tag, text = EXCLUDED.text, embedding = EXCLUDED.embedding`, s.table)
	if _, err := s.pool.Exec(ctx, q, rec.RequestID, rec.Tag, rec.Text, pgv.NewVector(rec.Vector)); err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	s.logger.Info("evidence.pgvector.added", "request_id", rec.RequestID, "tag", rec.Tag)
	return nil
}

func (s *Store) Delete(ctx context.Context, requestID string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE request_id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, q, requestID); err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	s.logger.Info("evidence.pgvector.deleted", "request_id", requestID)
	return nil
}

func (s *Store) Relabel(ctx context.Context, requestID, tag string) error {
	q := fmt.Sprintf(`UPDATE %s SET tag = $2 WHERE request_id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, q, requestID, tag); err != nil {
		return fmt.Errorf("relabel evidence: %w", err)
	}
	s.logger.Info("evidence.pgvector.relabeled", "request_id", requestID, "tag", tag)
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
