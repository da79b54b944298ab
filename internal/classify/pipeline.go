package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/procurement-intake/constants"
	"github.com/joseph-ayodele/procurement-intake/internal/common"
	"github.com/joseph-ayodele/procurement-intake/internal/embedding"
	"github.com/joseph-ayodele/procurement-intake/internal/entity"
	"github.com/joseph-ayodele/procurement-intake/internal/evidence"
	"github.com/joseph-ayodele/procurement-intake/internal/llm"
)

// Config holds the classification knobs.
type Config struct {
	TopN                 int           // default 3
	ExamplesPerGroup     int           // default 2
	RetrievalParallelism int           // default 3
	CallTimeout          time.Duration // completion and embedding calls; 0 leaves it to the client
	EvidenceTimeout      time.Duration // whole retrieval stage; 0 means none
}

// Pipeline assigns a commodity group:
//
//	SCORE -> FILTER -> SELECT_TOP_N -> EMBED_QUERY -> RETRIEVE_EVIDENCE -> RERANK | ACCEPT_TOP
//
// Embedder and Index may be nil, which always ends in ACCEPT_TOP.
type Pipeline struct {
	Logger    *slog.Logger
	Cfg       Config
	Completer llm.StructuredCompleter
	Embedder  embedding.Embedder
	Index     evidence.Index
}

func NewPipeline(logger *slog.Logger, cfg Config, completer llm.StructuredCompleter, embedder embedding.Embedder, index evidence.Index) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 3
	}
	if cfg.ExamplesPerGroup <= 0 {
		cfg.ExamplesPerGroup = 2
	}
	if cfg.RetrievalParallelism <= 0 {
		cfg.RetrievalParallelism = 3
	}
	return &Pipeline{Logger: logger, Cfg: cfg, Completer: completer, Embedder: embedder, Index: index}
}

// Classify returns a decision whose ChosenID is always one of req.Candidates.
func (p *Pipeline) Classify(ctx context.Context, req entity.ClassificationRequest) (entity.ClassificationDecision, error) {
	if err := common.NewValidator().
		Field("available_commodity_groups", req.Candidates, common.Required).
		Field("title", req.Title, common.MaxLength(1000)).
		Err(); err != nil {
		return entity.ClassificationDecision{}, err
	}
	req = Normalize(req)
	req.CorrelationID = common.EnsureCorrelationID(req.CorrelationID)
	log := p.Logger.With("correlation_id", req.CorrelationID)
	ctx = common.WithCorrelationID(ctx, req.CorrelationID)
	start := time.Now()

	byID := make(map[int]entity.CommodityCandidate, len(req.Candidates))
	for _, c := range req.Candidates {
		if _, ok := byID[c.ID]; !ok {
			byID[c.ID] = c
		}
	}

	// 1) SCORE
	var scoring scoringResponse
	if err := p.complete(ctx, log, "score", llm.StructuredRequest{
		Name:     llm.SchemaCommodityScoring,
		Schema:   llm.BuildScoringJSONSchema(),
		Messages: llm.BuildScoringMessages(req),
	}, &scoring); err != nil {
		return entity.ClassificationDecision{}, err
	}

	// 2) FILTER
	filtered := Filter(scoring.Scores, byID)
	if len(filtered) == 0 {
		log.Warn("classify.filter.empty", "returned", len(scoring.Scores))
		return entity.ClassificationDecision{}, common.NoValidCandidates(len(scoring.Scores))
	}

	// 3) SELECT_TOP_N
	top := TopN(filtered, p.Cfg.TopN)
	log.Info("classify.top_n", "returned", len(scoring.Scores), "kept", len(filtered), "top", topIDs(top))

	decide := func(stage constants.Stage, id int, confidence float64) entity.ClassificationDecision {
		log.Info("classify.decision", "stage", stage, "chosen_id", id, "confidence", confidence,
			"elapsed_ms", time.Since(start).Milliseconds())
		return entity.ClassificationDecision{
			ChosenID:      &id,
			Confidence:    confidence,
			CorrelationID: req.CorrelationID,
			DecidedAt:     stage,
		}
	}
	acceptTop := func() entity.ClassificationDecision {
		return decide(constants.StageAcceptTop, top[0].ID, top[0].Score)
	}

	if p.Embedder == nil || p.Index == nil {
		log.Info("classify.evidence.skipped", "reason", "no_evidence_backend")
		return acceptTop(), nil
	}

	// 4) EMBED_QUERY
	vec, err := p.embed(ctx, log, req)
	if err != nil {
		log.Warn("classify.embed.failed", "error", err)
		return acceptTop(), nil
	}

	// 5) RETRIEVE_EVIDENCE
	examples, ok := p.retrieveEvidence(ctx, log, vec, top, byID)
	if !ok {
		return acceptTop(), nil
	}

	// 6) RERANK
	cands := make([]llm.RerankCandidate, len(top))
	offered := make(map[int]struct{}, len(top))
	for i, c := range top {
		cands[i] = llm.RerankCandidate{Candidate: byID[c.ID], PriorScore: c.Score, Examples: examples[i]}
		offered[c.ID] = struct{}{}
	}
	var rr rerankResponse
	if err := p.complete(ctx, log, "rerank", llm.StructuredRequest{
		Name:     llm.SchemaCommodityRerank,
		Schema:   llm.BuildRerankJSONSchema(),
		Messages: llm.BuildRerankMessages(req, cands),
	}, &rr); err != nil {
		return acceptTop(), nil
	}
	if _, ok := offered[rr.ChosenID]; !ok {
		log.Warn("classify.rerank.out_of_set", "chosen_id", rr.ChosenID, "offered", topIDs(top))
		return acceptTop(), nil
	}
	return decide(constants.StageRerank, rr.ChosenID, clamp01(rr.Probability)), nil
}

func (p *Pipeline) embed(ctx context.Context, log *slog.Logger, req entity.ClassificationRequest) ([]float32, error) {
	if p.Cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Cfg.CallTimeout)
		defer cancel()
	}
	start := time.Now()
	vec, err := p.Embedder.Embed(ctx, embedding.RequestText(req.Title, req.VendorName, req.VATID, req.OrderLinesText))
	if err != nil {
		return nil, common.CollaboratorFailure("embedding", err)
	}
	if len(vec) == 0 {
		return nil, common.CollaboratorFailure("embedding", fmt.Errorf("empty vector"))
	}
	log.Info("classify.embed.ok", "dims", len(vec), "elapsed_ms", time.Since(start).Milliseconds())
	return vec, nil
}

func (p *Pipeline) complete(ctx context.Context, log *slog.Logger, event string, req llm.StructuredRequest, out any) error {
	if p.Cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Cfg.CallTimeout)
		defer cancel()
	}
	start := time.Now()
	raw, err := p.Completer.CompleteStructured(ctx, req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		log.Error("classify."+event+".failed", "error", err, "elapsed_ms", elapsed)
		return common.CollaboratorFailure("structured_completion", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Error("classify."+event+".decode_failed", "error", err, "elapsed_ms", elapsed)
		return common.CollaboratorFailure("structured_completion", fmt.Errorf("decode %s: %w", req.Name, err))
	}
	log.Info("classify."+event+".ok", "elapsed_ms", elapsed)
	return nil
}

// Normalize collapses whitespace in every text input and drops blank order lines.
func Normalize(req entity.ClassificationRequest) entity.ClassificationRequest {
	out := req
	out.Title = collapse(req.Title)
	out.VendorName = collapse(req.VendorName)
	out.VATID = collapse(req.VATID)
	out.OrderLinesText = make([]string, 0, len(req.OrderLinesText))
	for _, l := range req.OrderLinesText {
		if l = collapse(l); l != "" {
			out.OrderLinesText = append(out.OrderLinesText, l)
		}
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func topIDs(top []entity.ScoredCandidate) []int {
	ids := make([]int, len(top))
	for i, c := range top {
		ids[i] = c.ID
	}
	return ids
}
