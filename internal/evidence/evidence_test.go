package evidence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 2}))
}

func TestMemorySearchFiltersAndRanks(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(
		Record{RequestID: "r1", Tag: "31", Text: "adobe photoshop", Vector: []float32{1, 0}},
		Record{RequestID: "r2", Tag: "31", Text: "acrobat", Vector: []float32{0.7, 0.7}},
		Record{RequestID: "r3", Tag: "31", Text: "far", Vector: []float32{0, 1}},
		Record{RequestID: "r4", Tag: "12", Text: "other group", Vector: []float32{1, 0}},
	)

	got, err := m.Search(ctx, []float32{1, 0}, 2, "31")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "adobe photoshop", got[0].Text)
	assert.Equal(t, "acrobat", got[1].Text)
	assert.Greater(t, got[0].Similarity, got[1].Similarity)

	none, err := m.Search(ctx, []float32{1, 0}, 2, "99")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	assert.ErrorIs(t, m.Add(ctx, Record{RequestID: "x"}), ErrInvalidRecord)

	require.NoError(t, m.Add(ctx, Record{RequestID: "r1", Tag: "1", Text: "old", Vector: []float32{1}}))
	require.NoError(t, Update(ctx, m, Record{RequestID: "r1", Tag: "2", Text: "new", Vector: []float32{1}}))

	got, _ := m.Search(ctx, []float32{1}, 5, "1")
	assert.Empty(t, got)
	got, _ = m.Search(ctx, []float32{1}, 5, "2")
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Text)

	require.NoError(t, m.Relabel(ctx, "r1", "3"))
	got, _ = m.Search(ctx, []float32{1}, 5, "3")
	require.Len(t, got, 1)
	got, _ = m.Search(ctx, []float32{1}, 5, "")
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].Tag)

	require.NoError(t, m.Delete(ctx, "r1"))
	got, _ = m.Search(ctx, []float32{1}, 5, "")
	assert.Empty(t, got)
}
