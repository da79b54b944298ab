package classify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/procurement-intake/constants"
	"github.com/joseph-ayodele/procurement-intake/internal/common"
	"github.com/joseph-ayodele/procurement-intake/internal/entity"
	"github.com/joseph-ayodele/procurement-intake/internal/evidence"
	"github.com/joseph-ayodele/procurement-intake/internal/llm"
	"github.com/joseph-ayodele/procurement-intake/internal/llm/llmtest"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) { return f.vec, f.err }

type spyIndex struct {
	inner evidence.Index
	err   map[string]error
	mu    sync.Mutex
	tags  []string
	topK  []int
}

func (s *spyIndex) Search(ctx context.Context, vec []float32, topK int, tag string) ([]entity.EvidenceExample, error) {
	s.mu.Lock()
	s.tags = append(s.tags, tag)
	s.topK = append(s.topK, topK)
	s.mu.Unlock()
	if err := s.err[tag]; err != nil {
		return nil, err
	}
	return s.inner.Search(ctx, vec, topK, tag)
}

func (s *spyIndex) searched() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tags)
}

func request() entity.ClassificationRequest {
	return entity.ClassificationRequest{
		Title:          "  Adobe   Creative Cloud ",
		VendorName:     "Adobe Systems",
		VATID:          "IE6364992H",
		OrderLinesText: []string{"Creative Cloud All Apps  12 months", "  "},
		Candidates: []entity.CommodityCandidate{
			{ID: 1, Label: "Software", Category: "Information Technology"},
			{ID: 2, Label: "Hardware", Category: "Information Technology"},
			{ID: 3, Label: "IT Services", Category: "Information Technology"},
			{ID: 4, Label: "Advertising", Category: "Marketing & Advertising"},
		},
		CorrelationID: "trace-42",
	}
}

func historyIndex(tags ...string) *spyIndex {
	m := evidence.NewMemory()
	for i, tag := range tags {
		_ = m.Add(context.Background(), evidence.Record{
			RequestID: tag + "-" + string(rune('a'+i)),
			Tag:       tag,
			Text:      "history for " + tag,
			Vector:    []float32{1, 0},
		})
	}
	return &spyIndex{inner: m}
}

const scores = `{"scores":[{"id":1,"score":0.9},{"id":2,"score":0.5},{"id":3,"score":0.5}],"rationale":"software"}`

func TestScenarioD_EmbeddingFailureAcceptsTop(t *testing.T) {
	c := llmtest.NewCompleter().OnJSON(llm.SchemaCommodityScoring, scores)
	idx := historyIndex("1", "2", "3")
	p := NewPipeline(nil, Config{}, c, fakeEmbedder{err: errors.New("embedding down")}, idx)

	d, err := p.Classify(context.Background(), request())
	require.NoError(t, err)
	require.NotNil(t, d.ChosenID)
	assert.Equal(t, 1, *d.ChosenID)
	assert.InDelta(t, 0.9, d.Confidence, 1e-9)
	assert.Equal(t, constants.StageAcceptTop, d.DecidedAt)
	assert.Equal(t, "trace-42", d.CorrelationID)
	assert.Zero(t, idx.searched())
	assert.Empty(t, c.Calls(llm.SchemaCommodityRerank))
}

func TestRerankWithFullEvidence(t *testing.T) {
	c := llmtest.NewCompleter().
		OnJSON(llm.SchemaCommodityScoring, scores).
		OnJSON(llm.SchemaCommodityRerank, `{"chosen_id":3,"probability":0.82}`)
	idx := historyIndex("1", "2", "3", "3")
	p := NewPipeline(nil, Config{}, c, fakeEmbedder{vec: []float32{1, 0}}, idx)

	d, err := p.Classify(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, 3, *d.ChosenID)
	assert.InDelta(t, 0.82, d.Confidence, 1e-9)
	assert.Equal(t, constants.StageRerank, d.DecidedAt)

	assert.ElementsMatch(t, []string{"1", "2", "3"}, idx.tags)
	assert.Equal(t, []int{2, 2, 2}, idx.topK)

	rr := c.Calls(llm.SchemaCommodityRerank)
	require.Len(t, rr, 1)
	user := rr[0].Messages[len(rr[0].Messages)-1].Text
	assert.Contains(t, user, "ID: 3")
	assert.Contains(t, user, "PRIOR SCORE: 0.90")
	assert.Contains(t, user, "    * history for 3")
	assert.Contains(t, user, "TITLE: Adobe Creative Cloud")
	assert.NotContains(t, user, "ID: 4")
}

func TestEvidenceGateIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name string
		idx  *spyIndex
	}{
		{name: "one candidate without examples", idx: historyIndex("1", "2")},
		{name: "one search fails", idx: func() *spyIndex {
			s := historyIndex("1", "2", "3")
			s.err = map[string]error{"2": errors.New("index down")}
			return s
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := llmtest.NewCompleter().OnJSON(llm.SchemaCommodityScoring, scores)
			p := NewPipeline(nil, Config{RetrievalParallelism: 1}, c, fakeEmbedder{vec: []float32{1, 0}}, tt.idx)

			d, err := p.Classify(context.Background(), request())
			require.NoError(t, err)
			assert.Equal(t, 1, *d.ChosenID)
			assert.InDelta(t, 0.9, d.Confidence, 1e-9)
			assert.Equal(t, constants.StageAcceptTop, d.DecidedAt)
			assert.Empty(t, c.Calls(llm.SchemaCommodityRerank))
		})
	}
}

func TestRerankFallbacks(t *testing.T) {
	tests := []struct {
		name string
		resp llmtest.Response
	}{
		{name: "id outside offered set", resp: llmtest.Response{JSON: `{"chosen_id":4,"probability":0.99}`}},
		{name: "unknown id", resp: llmtest.Response{JSON: `{"chosen_id":77,"probability":0.99}`}},
		{name: "call fails", resp: llmtest.Response{Err: errors.New("rate limited")}},
		{name: "refusal", resp: llmtest.Response{Err: common.ErrRefusal}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := llmtest.NewCompleter().
				OnJSON(llm.SchemaCommodityScoring, scores).
				On(llm.SchemaCommodityRerank, tt.resp)
			p := NewPipeline(nil, Config{}, c, fakeEmbedder{vec: []float32{1, 0}}, historyIndex("1", "2", "3"))

			d, err := p.Classify(context.Background(), request())
			require.NoError(t, err)
			assert.Equal(t, 1, *d.ChosenID)
			assert.InDelta(t, 0.9, d.Confidence, 1e-9)
			assert.Equal(t, constants.StageAcceptTop, d.DecidedAt)
			assert.Len(t, c.Calls(llm.SchemaCommodityRerank), 1)
		})
	}
}

func TestNoValidCandidates(t *testing.T) {
	c := llmtest.NewCompleter().OnJSON(llm.SchemaCommodityScoring, `{"scores":[{"id":99,"score":0.9},{"id":100,"score":0.4}],"rationale":""}`)
	_, err := NewPipeline(nil, Config{}, c, nil, nil).Classify(context.Background(), request())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoValidCandidates)
}

func TestScoringFailurePropagates(t *testing.T) {
	c := llmtest.NewCompleter().On(llm.SchemaCommodityScoring, llmtest.Response{Err: errors.New("500")})
	_, err := NewPipeline(nil, Config{}, c, nil, nil).Classify(context.Background(), request())
	assert.ErrorIs(t, err, common.ErrCollaboratorCall)
}

func TestScoringDeadlineIsTimeout(t *testing.T) {
	c := llmtest.NewCompleter().On(llm.SchemaCommodityScoring, llmtest.Response{Block: true})
	_, err := NewPipeline(nil, Config{CallTimeout: 20 * time.Millisecond}, c, nil, nil).Classify(context.Background(), request())
	require.Error(t, err)
	assert.True(t, common.IsTimeout(err))
	assert.ErrorIs(t, err, common.ErrCollaboratorCall)
}

func TestUnknownIDsAreDroppedBeforeRanking(t *testing.T) {
	c := llmtest.NewCompleter().OnJSON(llm.SchemaCommodityScoring,
		`{"scores":[{"id":99,"score":1.0},{"id":2,"score":0.4},{"id":4,"score":1.3}],"rationale":""}`)
	d, err := NewPipeline(nil, Config{}, c, nil, nil).Classify(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, 4, *d.ChosenID)
	assert.Equal(t, 1.0, d.Confidence)
}

func TestInvalidRequest(t *testing.T) {
	req := request()
	req.Candidates = nil
	_, err := NewPipeline(nil, Config{}, llmtest.NewCompleter(), nil, nil).Classify(context.Background(), req)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestMissingCorrelationIDIsGenerated(t *testing.T) {
	c := llmtest.NewCompleter().OnJSON(llm.SchemaCommodityScoring, scores)
	req := request()
	req.CorrelationID = ""
	d, err := NewPipeline(nil, Config{}, c, nil, nil).Classify(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, d.CorrelationID)
}

func TestNormalize(t *testing.T) {
	n := Normalize(request())
	assert.Equal(t, "Adobe Creative Cloud", n.Title)
	assert.Equal(t, []string{"Creative Cloud All Apps 12 months"}, n.OrderLinesText)
}
