package evidence

import (
	"context"
	"slices"
	"sync"

	"github.com/joseph-ayodele/procurement-intake/internal/entity"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store for tests and local runs.
type Memory struct {
	mu   sync.RWMutex
	recs []Record
}

func NewMemory(recs ...Record) *Memory {
	return &Memory{recs: slices.Clone(recs)}
}

func (m *Memory) Search(ctx context.Context, vector []float32, topK int, tag string) ([]entity.EvidenceExample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	matching := make([]Record, 0, len(m.recs))
	for _, r := range m.recs {
		if tag == "" || r.Tag == tag {
			matching = append(matching, r)
		}
	}
	return TopK(vector, matching, topK), nil
}

func (m *Memory) Add(_ context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = slices.DeleteFunc(m.recs, func(r Record) bool { return r.RequestID == rec.RequestID })
	m.recs = append(m.recs, rec)
	return nil
}

func (m *Memory) Delete(_ context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = slices.DeleteFunc(m.recs, func(r Record) bool { return r.RequestID == requestID })
	return nil
}

func (m *Memory) Relabel(_ context.Context, requestID, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.recs {
		if m.recs[i].RequestID == requestID {
			m.recs[i].Tag = tag
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
