package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/procurement-intake/internal/entity"
)

// retrieveEvidence fetches examples for every top candidate. It is all or
// nothing: one failed search or one candidate without examples discards
// the evidence for every candidate.
func (p *Pipeline) retrieveEvidence(ctx context.Context, log *slog.Logger, vec []float32, top []entity.ScoredCandidate, byID map[int]entity.CommodityCandidate) ([][]string, bool) {
	if p.Cfg.EvidenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Cfg.EvidenceTimeout)
		defer cancel()
	}

	start := time.Now()
	examples := make([][]string, len(top))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Cfg.RetrievalParallelism)
	for i, c := range top {
		tag := byID[c.ID].Tag()
		g.Go(func() error {
			hits, err := p.Index.Search(gctx, vec, p.Cfg.ExamplesPerGroup, tag)
			if err != nil {
				return fmt.Errorf("search tag %s: %w", tag, err)
			}
			texts := make([]string, 0, len(hits))
			for _, h := range hits {
				if t := strings.TrimSpace(h.Text); t != "" {
					texts = append(texts, t)
				}
			}
			if len(texts) == 0 {
				return fmt.Errorf("no examples for tag %s", tag)
			}
			if len(texts) > p.Cfg.ExamplesPerGroup {
				texts = texts[:p.Cfg.ExamplesPerGroup]
			}
			examples[i] = texts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("classify.evidence.skipped", "reason", err.Error(), "elapsed_ms", time.Since(start).Milliseconds())
		return nil, false
	}
	log.Info("classify.evidence.ok", "candidates", len(top), "elapsed_ms", time.Since(start).Milliseconds())
	return examples, true
}
