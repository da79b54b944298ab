package evidence

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/joseph-ayodele/procurement-intake/internal/entity"
)

// Record is one labeled historical request stored in an index.
type Record struct {
	RequestID string
	Tag       string
	Text      string
	Vector    []float32
}

// Index is the similarity-search collaborator. An empty result is valid.
// An empty tag searches every group.
type Index interface {
	Search(ctx context.Context, vector []float32, topK int, tag string) ([]entity.EvidenceExample, error)
}

// Writer maintains indexed history.
type Writer interface {
	Add(ctx context.Context, rec Record) error
	Delete(ctx context.Context, requestID string) error
	// Relabel moves every entry of requestID to a new tag.
	Relabel(ctx context.Context, requestID, tag string) error
}

// Store is an Index that can also be written to and closed.
type Store interface {
	Index
	Writer
	Close() error
}

var ErrInvalidRecord = errors.New("evidence record needs request id, tag, text and vector")

// Validate checks the fields every backend requires.
func (r Record) Validate() error {
	if r.RequestID == "" || r.Tag == "" || r.Text == "" || len(r.Vector) == 0 {
		return ErrInvalidRecord
	}
	return nil
}

// Update replaces the stored record for rec.RequestID.
func Update(ctx context.Context, w Writer, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := w.Delete(ctx, rec.RequestID); err != nil {
		return err
	}
	return w.Add(ctx, rec)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Scored pairs a record with its similarity to a query.
type Scored struct {
	Record     Record
	Similarity float64
}

// TopK ranks records by cosine similarity to query, best first, and keeps
// at most k. Ties keep input order.
func TopK(query []float32, recs []Record, k int) []entity.EvidenceExample {
	scored := make([]Scored, 0, len(recs))
	for _, r := range recs {
		scored = append(scored, Scored{Record: r, Similarity: Cosine(query, r.Vector)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	out := make([]entity.EvidenceExample, 0, len(scored))
	for _, s := range scored {
		out = append(out, entity.EvidenceExample{Text: s.Record.Text, Tag: s.Record.Tag, Similarity: s.Similarity})
	}
	return out
}
