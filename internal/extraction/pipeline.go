package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/procurement-intake/constants"
	"github.com/joseph-ayodele/procurement-intake/internal/common"
	"github.com/joseph-ayodele/procurement-intake/internal/entity"
	"github.com/joseph-ayodele/procurement-intake/internal/llm"
	"github.com/joseph-ayodele/procurement-intake/internal/pdftext"
)

const completerName = "structured_completion"

// Config holds the extraction knobs.
type Config struct {
	TextParseBudget int           // runes of local text sent to the model; default 15000
	CallTimeout     time.Duration // per collaborator call; 0 leaves it to the client
	MaxDocumentSize int           // bytes; default 25 MiB
}

// Pipeline turns PDF bytes into a procurement record:
//
//	TEXT_LOCAL -> TEXT_MODEL_PARSE -> check -> RAW_MODEL_PARSE -> check -> RECOVERY -> MERGE
//
// Text and Renderer may be nil; the pipeline then skips the local text pass
// or the recovery pass.
type Pipeline struct {
	Logger    *slog.Logger
	Cfg       Config
	Text      TextExtractor
	Renderer  PageRenderer
	Completer llm.StructuredCompleter
}

func NewPipeline(logger *slog.Logger, cfg Config, text TextExtractor, renderer PageRenderer, completer llm.StructuredCompleter) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TextParseBudget <= 0 {
		cfg.TextParseBudget = 15000
	}
	if cfg.MaxDocumentSize <= 0 {
		cfg.MaxDocumentSize = 25 << 20
	}
	return &Pipeline{Logger: logger, Cfg: cfg, Text: text, Renderer: renderer, Completer: completer}
}

// run is the state carried between steps of one Extract call.
type run struct {
	doc    entity.RawDocument
	log    *slog.Logger
	text   entity.ExtractedText
	best   entity.ProcurementRecord
	result entity.ExtractionResult
}

type step func(ctx context.Context, r *run) (constants.Stage, error)

// Extract runs the state machine to ACCEPT or REJECT.
func (p *Pipeline) Extract(ctx context.Context, doc entity.RawDocument) (entity.ExtractionResult, error) {
	if err := p.validate(doc); err != nil {
		return entity.ExtractionResult{}, err
	}
	doc.CorrelationID = common.EnsureCorrelationID(doc.CorrelationID)
	r := &run{
		doc: doc,
		log: p.Logger.With("correlation_id", doc.CorrelationID, "filename", doc.Filename),
	}

	steps := map[constants.Stage]step{
		constants.StageTextLocal:      p.textLocal,
		constants.StageTextModelParse: p.textModelParse,
		constants.StageRawModelParse:  p.rawModelParse,
		constants.StageRecovery:       p.recovery,
	}

	start := time.Now()
	r.log.Info("extraction.start", "bytes", len(doc.Data))
	state := constants.StageTextLocal
	for state != constants.StageAccept {
		next, err := steps[state](ctx, r)
		if err != nil {
			if errors.Is(err, common.ErrNotProcurementDocument) {
				r.log.Warn("extraction.reject", "stage", state, "elapsed_ms", time.Since(start).Milliseconds())
			} else {
				r.log.Error("extraction.failed", "stage", state, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
			}
			return entity.ExtractionResult{}, err
		}
		state = next
	}

	r.result.Record = r.best
	r.result.Record.IsProcurementRequest = true
	r.result.Record.CorrelationID = doc.CorrelationID
	r.result.TextMethod = r.text.Method
	r.result.InconsistentLines = r.result.Record.InconsistentLines()
	if len(r.result.InconsistentLines) > 0 {
		r.log.Warn("extraction.accept.inconsistent_lines", "lines", r.result.InconsistentLines)
	}
	r.log.Info("extraction.accept",
		"accepted_at", r.result.AcceptedAt,
		"within_tolerance", r.result.Reconciliation.WithinTolerance,
		"difference_cents", r.result.Reconciliation.Difference,
		"gap", r.result.Gap.Strings(),
		"order_lines", len(r.result.Record.OrderLines),
		"inconsistent_lines", len(r.result.InconsistentLines),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return r.result, nil
}

func (p *Pipeline) validate(doc entity.RawDocument) error {
	v := common.NewValidator().
		Field("data", doc.Data, common.Required, common.MaxBytes(p.Cfg.MaxDocumentSize))
	if !constants.IsPDFContentType(doc.ContentType) {
		v.Field("content_type", doc.ContentType, func(name string, value interface{}) *common.ValidationError {
			return &common.ValidationError{Field: name, Value: value, Message: "must be application/pdf"}
		})
	}
	return v.Err()
}

// textLocal tries the local text layer; without usable text the model parse
// of derived text is skipped entirely.
func (p *Pipeline) textLocal(ctx context.Context, r *run) (constants.Stage, error) {
	if p.Text == nil {
		return constants.StageRawModelParse, nil
	}
	res, err := p.Text.Extract(ctx, r.doc.Data)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.log.Warn("extraction.text_local.failed", "error", err)
		return constants.StageRawModelParse, nil
	}
	if !res.Success {
		r.log.Info("extraction.text_local.insufficient")
		return constants.StageRawModelParse, nil
	}
	r.text = res
	r.log.Info("extraction.text_local.ok", "method", res.Method, "chars", pdftext.CharCount(res.Text))
	return constants.StageTextModelParse, nil
}

func (p *Pipeline) textModelParse(ctx context.Context, r *run) (constants.Stage, error) {
	rec, err := p.parse(ctx, r, "text_parse", llm.BuildTextExtractionMessages(r.text.Text, p.Cfg.TextParseBudget))
	if err != nil {
		return "", err
	}
	if !rec.IsProcurementRequest {
		// derived text can mislead the model; the raw document gets the final word
		r.log.Warn("extraction.text_parse.not_procurement")
		return constants.StageRawModelParse, nil
	}
	r.best = rec
	recon, gap, ok := Satisfied(rec)
	r.result.Reconciliation, r.result.Gap = recon, gap
	if ok {
		r.result.AcceptedAt = constants.StageTextModelParse
		return constants.StageAccept, nil
	}
	r.log.Info("extraction.text_parse.escalate",
		"computed_cents", recon.Computed, "declared_cents", recon.Declared,
		"difference_cents", recon.Difference, "gap", gap.Strings())
	return constants.StageRawModelParse, nil
}

func (p *Pipeline) rawModelParse(ctx context.Context, r *run) (constants.Stage, error) {
	rec, err := p.parse(ctx, r, "raw_parse", llm.BuildRawExtractionMessages(r.doc.Data))
	if err != nil {
		return "", err
	}
	if !rec.IsProcurementRequest {
		return "", common.NotProcurementDocument(string(constants.StageRawModelParse))
	}
	r.best = rec
	recon, gap, ok := Satisfied(rec)
	r.result.Reconciliation, r.result.Gap = recon, gap
	r.result.AcceptedAt = constants.StageRawModelParse
	if ok {
		return constants.StageAccept, nil
	}
	if gap.Empty() {
		r.log.Warn("extraction.raw_parse.inconsistent_accepted",
			"computed_cents", recon.Computed, "declared_cents", recon.Declared, "difference_cents", recon.Difference)
		return constants.StageAccept, nil
	}
	r.log.Info("extraction.raw_parse.escalate", "gap", gap.Strings())
	return constants.StageRecovery, nil
}

// recovery renders pages and asks only for the missing fields, then merges.
// No renderer or no images means the best-effort record is accepted as is.
func (p *Pipeline) recovery(ctx context.Context, r *run) (constants.Stage, error) {
	gap := r.result.Gap
	r.result.AcceptedAt = constants.StageMerge
	if p.Renderer == nil {
		r.log.Info("extraction.recovery.skipped", "reason", "no_renderer")
		return constants.StageAccept, nil
	}

	sel := pdftext.FirstAndLastPage
	if gap.Contains(constants.FieldOrderLines) {
		sel = pdftext.AllPages
	}
	pages, err := p.Renderer.Render(ctx, r.doc.Data, sel)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.log.Warn("extraction.recovery.render_failed", "pages", sel.String(), "error", err)
		return constants.StageAccept, nil
	}
	if len(pages) == 0 {
		r.log.Info("extraction.recovery.skipped", "reason", "no_images", "pages", sel.String())
		return constants.StageAccept, nil
	}

	current := r.best.Clone()
	current.CorrelationID = ""
	currentJSON, err := json.Marshal(current)
	if err != nil {
		return "", fmt.Errorf("encode current record: %w", err)
	}

	req := llm.StructuredRequest{
		Name:     llm.SchemaFieldRecovery,
		Schema:   llm.BuildRecoveryJSONSchema(),
		Messages: llm.BuildRecoveryMessages(gap.Strings(), currentJSON, pages),
	}
	rec, err := p.complete(ctx, r, "recovery", req)
	if err != nil {
		return "", err
	}

	merged, filled := Merge(r.best, rec, gap)
	r.best = merged
	r.result.Recovered = filled
	r.result.Reconciliation, r.result.Gap, _ = Satisfied(merged)
	r.log.Info("extraction.merge.ok", "filled", constants.AsStringSlice(filled), "remaining_gap", r.result.Gap.Strings())
	return constants.StageAccept, nil
}

func (p *Pipeline) parse(ctx context.Context, r *run, event string, msgs []llm.Message) (entity.ProcurementRecord, error) {
	return p.complete(ctx, r, event, llm.StructuredRequest{
		Name:     llm.SchemaProcurementRecord,
		Schema:   llm.BuildRecordJSONSchema(),
		Messages: msgs,
	})
}

func (p *Pipeline) complete(ctx context.Context, r *run, event string, req llm.StructuredRequest) (entity.ProcurementRecord, error) {
	if p.Cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Cfg.CallTimeout)
		defer cancel()
	}
	ctx = common.WithCorrelationID(ctx, r.doc.CorrelationID)

	start := time.Now()
	r.log.Info("extraction." + event + ".start")
	raw, err := p.Completer.CompleteStructured(ctx, req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		r.log.Error("extraction."+event+".failed", "error", err, "elapsed_ms", elapsed)
		return entity.ProcurementRecord{}, common.CollaboratorFailure(completerName, err)
	}

	var rec entity.ProcurementRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		r.log.Error("extraction."+event+".decode_failed", "error", err, "elapsed_ms", elapsed)
		return entity.ProcurementRecord{}, common.CollaboratorFailure(completerName, fmt.Errorf("decode record: %w", err))
	}
	r.log.Info("extraction."+event+".ok",
		"is_procurement", rec.IsProcurementRequest,
		"order_lines", len(rec.OrderLines),
		"elapsed_ms", elapsed,
	)
	return rec, nil
}
