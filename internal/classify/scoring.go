package classify

import (
	"sort"

	"github.com/joseph-ayodele/procurement-intake/internal/entity"
)

type scoreItem struct {
	ID    int     `json:"id"`
	Score float64 `json:"score"`
}

type scoringResponse struct {
	Scores    []scoreItem `json:"scores"`
	Rationale string      `json:"rationale"`
}

type rerankResponse struct {
	ChosenID    int     `json:"chosen_id"`
	Probability float64 `json:"probability"`
}

// Filter keeps scores whose id is a known candidate, clamps them to [0,1]
// and drops repeated ids after the first. Order is preserved.
func Filter(scores []scoreItem, known map[int]entity.CommodityCandidate) []entity.ScoredCandidate {
	seen := make(map[int]struct{}, len(scores))
	out := make([]entity.ScoredCandidate, 0, len(scores))
	for _, s := range scores {
		if _, ok := known[s.ID]; !ok {
			continue
		}
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, entity.ScoredCandidate{ID: s.ID, Score: clamp01(s.Score)})
	}
	return out
}

// TopN returns at most n candidates by descending score. Ties keep their
// original order.
func TopN(scored []entity.ScoredCandidate, n int) []entity.ScoredCandidate {
	out := append([]entity.ScoredCandidate(nil), scored...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
