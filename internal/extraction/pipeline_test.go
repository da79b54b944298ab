package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/procurement-intake/constants"
	"github.com/joseph-ayodele/procurement-intake/internal/common"
	"github.com/joseph-ayodele/procurement-intake/internal/entity"
	"github.com/joseph-ayodele/procurement-intake/internal/llm"
	"github.com/joseph-ayodele/procurement-intake/internal/llm/llmtest"
	"github.com/joseph-ayodele/procurement-intake/internal/pdftext"
)

type fakeText struct {
	res entity.ExtractedText
	err error
}

func (f fakeText) Extract(context.Context, []byte) (entity.ExtractedText, error) { return f.res, f.err }

type fakeRenderer struct {
	pages []entity.PageImage
	err   error
	sel   []pdftext.PageSelection
}

func (f *fakeRenderer) Render(_ context.Context, _ []byte, sel pdftext.PageSelection) ([]entity.PageImage, error) {
	f.sel = append(f.sel, sel)
	return f.pages, f.err
}

var goodText = fakeText{res: entity.ExtractedText{Text: "Angebot ACME GmbH ...", Method: constants.MethodLayout, Success: true}}

const (
	consistent = `{"isProcurementRequest":true,"title":"Laptops","vendorName":"ACME GmbH","vatNumber":"DE123456789",
		"totalPriceCents":17500,"shippingCents":null,"taxCents":null,"totalDiscountCents":null,
		"orderLines":[
			{"description":"Dock","unit":"pcs","quantity":1,"unitPriceCents":10000,"totalPriceCents":10000},
			{"description":"Cable","unit":"pcs","quantity":3,"unitPriceCents":2500,"totalPriceCents":7500}]}`
	mismatched = `{"isProcurementRequest":true,"title":"Laptops","vendorName":"ACME GmbH","vatNumber":"DE123456789",
		"totalPriceCents":17000,"shippingCents":0,"taxCents":0,"totalDiscountCents":0,
		"orderLines":[
			{"description":"Dock","unit":"pcs","quantity":1,"unitPriceCents":10000,"totalPriceCents":10000},
			{"description":"Cable","unit":"pcs","quantity":3,"unitPriceCents":2500,"totalPriceCents":7500}]}`
	notProcurement = `{"isProcurementRequest":false,"title":null,"vendorName":null,"vatNumber":null,
		"totalPriceCents":null,"shippingCents":null,"taxCents":null,"totalDiscountCents":null,"orderLines":[]}`
	gappy = `{"isProcurementRequest":true,"title":"Office supplies","vendorName":null,"vatNumber":null,
		"totalPriceCents":5000,"shippingCents":null,"taxCents":null,"totalDiscountCents":null,"orderLines":[]}`
	recovered = `{"title":"Something else","vendorName":"Paper Co","vatNumber":"DE999",
		"totalPriceCents":1,"shippingCents":null,"taxCents":null,"totalDiscountCents":null,
		"orderLines":[{"description":"Paper","unit":"box","quantity":2,"unitPriceCents":2500,"totalPriceCents":5000}]}`
)

var pdfDoc = entity.RawDocument{Data: []byte("%PDF-1.7"), Filename: "offer.pdf", ContentType: "application/pdf", CorrelationID: "trace-1"}

func TestScenarioA_AcceptedAtTextParse(t *testing.T) {
	c := llmtest.NewCompleter().OnJSON(llm.SchemaProcurementRecord, consistent)
	p := NewPipeline(nil, Config{}, goodText, &fakeRenderer{}, c)

	res, err := p.Extract(context.Background(), pdfDoc)
	require.NoError(t, err)
	assert.Equal(t, constants.StageTextModelParse, res.AcceptedAt)
	assert.Equal(t, constants.MethodLayout, res.TextMethod)
	assert.Equal(t, int64(17500), res.Reconciliation.Computed)
	assert.True(t, res.Reconciliation.WithinTolerance)
	assert.Equal(t, "trace-1", res.Record.CorrelationID)
	assert.Equal(t, "ACME GmbH", res.Record.VendorName)
	assert.Len(t, c.Calls(""), 1)
	assert.Empty(t, res.InconsistentLines)
}

func TestAcceptFlagsInconsistentLines(t *testing.T) {
	// the sum reconciles but 2 x 10.00 is not 15.00
	doc := `{"isProcurementRequest":true,"title":"Chairs","vendorName":"ACME GmbH","vatNumber":"DE123456789",
		"totalPriceCents":1500,"shippingCents":null,"taxCents":null,"totalDiscountCents":null,
		"orderLines":[{"description":"Chair","unit":"pcs","quantity":2,"unitPriceCents":1000,"totalPriceCents":1500}]}`
	c := llmtest.NewCompleter().OnJSON(llm.SchemaProcurementRecord, doc)
	p := NewPipeline(nil, Config{}, goodText, &fakeRenderer{}, c)

	res, err := p.Extract(context.Background(), pdfDoc)
	require.NoError(t, err)
	assert.Equal(t, constants.StageTextModelParse, res.AcceptedAt)
	assert.True(t, res.Reconciliation.WithinTolerance)
	assert.Equal(t, []int{1}, res.InconsistentLines)
}

func TestScenarioB_MismatchEscalatesToRawParse(t *testing.T) {
	c := llmtest.NewCompleter().OnJSON(llm.SchemaProcurementRecord, mismatched, consistent)
	p := NewPipeline(nil, Config{}, goodText, &fakeRenderer{}, c)

	res, err := p.Extract(context.Background(), pdfDoc)
	require.NoError(t, err)
	assert.Equal(t, constants.StageRawModelParse, res.AcceptedAt)

	calls := c.Calls(llm.SchemaProcurementRecord)
	require.Len(t, calls, 2)
	raw := calls[1].Messages[len(calls[1].Messages)-1]
	require.Len(t, raw.Attachments, 1)
	assert.Equal(t, llm.AttachmentFile, raw.Attachments[0].Kind)
	assert.Equal(t, pdfDoc.Data, raw.Attachments[0].Data)
}

func TestScenarioC_RecoveryFillsOnlyEmptyFields(t *testing.T) {
	c := llmtest.NewCompleter().
		OnJSON(llm.SchemaProcurementRecord, gappy).
		OnJSON(llm.SchemaFieldRecovery, recovered)
	r := &fakeRenderer{pages: []entity.PageImage{{Page: 1, MediaType: "image/png", Data: []byte("png")}}}
	p := NewPipeline(nil, Config{}, fakeText{}, r, c)

	res, err := p.Extract(context.Background(), pdfDoc)
	require.NoError(t, err)

	assert.Equal(t, []pdftext.PageSelection{pdftext.AllPages}, r.sel)
	assert.Equal(t, constants.StageMerge, res.AcceptedAt)
	assert.Equal(t, []constants.Field{constants.FieldVendorName, constants.FieldVATNumber, constants.FieldOrderLines}, res.Recovered)
	assert.Equal(t, "Office supplies", res.Record.Title)
	assert.Equal(t, "Paper Co", res.Record.VendorName)
	assert.Equal(t, "DE999", res.Record.VATNumber)
	assert.Equal(t, int64(5000), *res.Record.TotalPriceCents)
	require.Len(t, res.Record.OrderLines, 1)
	assert.True(t, res.Gap.Empty())
	assert.True(t, res.Reconciliation.WithinTolerance)

	rc := c.Calls(llm.SchemaFieldRecovery)
	require.Len(t, rc, 1)
	user := rc[0].Messages[len(rc[0].Messages)-1]
	assert.Contains(t, user.Text, "- vendorName\n- vatNumber\n- orderLines\n")
	assert.Len(t, user.Attachments, 1)
}

func TestRecoveryRendersFirstAndLastWhenLinesPresent(t *testing.T) {
	noVAT := `{"isProcurementRequest":true,"title":"T","vendorName":"ACME","vatNumber":null,
		"totalPriceCents":900,"shippingCents":null,"taxCents":null,"totalDiscountCents":null,
		"orderLines":[{"description":"x","unit":null,"quantity":1,"unitPriceCents":1000,"totalPriceCents":1000}]}`
	c := llmtest.NewCompleter().
		OnJSON(llm.SchemaProcurementRecord, noVAT).
		OnJSON(llm.SchemaFieldRecovery, recovered)
	r := &fakeRenderer{pages: []entity.PageImage{{Page: 1, MediaType: "image/png", Data: []byte("a")}}}

	res, err := NewPipeline(nil, Config{}, nil, r, c).Extract(context.Background(), pdfDoc)
	require.NoError(t, err)
	assert.Equal(t, []pdftext.PageSelection{pdftext.FirstAndLastPage}, r.sel)
	assert.Equal(t, "ACME", res.Record.VendorName)
	assert.Equal(t, "DE999", res.Record.VATNumber)
	require.Len(t, res.Record.OrderLines, 1)
	assert.Equal(t, "x", res.Record.OrderLines[0].Description)
	assert.Equal(t, []constants.Field{constants.FieldVATNumber}, res.Recovered)
	assert.False(t, res.Reconciliation.WithinTolerance)
}

func TestRawParseAcceptsInconsistentRecordWithoutGap(t *testing.T) {
	c := llmtest.NewCompleter().OnJSON(llm.SchemaProcurementRecord, mismatched, mismatched)
	r := &fakeRenderer{}
	res, err := NewPipeline(nil, Config{}, goodText, r, c).Extract(context.Background(), pdfDoc)
	require.NoError(t, err)
	assert.Equal(t, constants.StageRawModelParse, res.AcceptedAt)
	assert.False(t, res.Reconciliation.WithinTolerance)
	assert.Equal(t, int64(500), res.Reconciliation.Difference)
	assert.Empty(t, r.sel)
}

func TestNoImagesSkipsRecoveryCall(t *testing.T) {
	c := llmtest.NewCompleter().OnJSON(llm.SchemaProcurementRecord, gappy)
	res, err := NewPipeline(nil, Config{}, nil, &fakeRenderer{}, c).Extract(context.Background(), pdfDoc)
	require.NoError(t, err)
	assert.Equal(t, constants.StageMerge, res.AcceptedAt)
	assert.Empty(t, c.Calls(llm.SchemaFieldRecovery))
	assert.Equal(t, "Office supplies", res.Record.Title)
	assert.Len(t, res.Gap, 3)
}

func TestRenderErrorKeepsBestEffortRecord(t *testing.T) {
	c := llmtest.NewCompleter().OnJSON(llm.SchemaProcurementRecord, gappy)
	r := &fakeRenderer{err: errors.New("pdftoppm missing")}
	res, err := NewPipeline(nil, Config{}, nil, r, c).Extract(context.Background(), pdfDoc)
	require.NoError(t, err)
	assert.Equal(t, "Office supplies", res.Record.Title)
	assert.Empty(t, c.Calls(llm.SchemaFieldRecovery))
}

func TestRejectPaths(t *testing.T) {
	tests := []struct {
		name   string
		text   TextExtractor
		script []string
		calls  int
	}{
		{name: "raw parse says no", text: nil, script: []string{notProcurement}, calls: 1},
		{name: "text parse says no then raw parse says no", text: goodText, script: []string{notProcurement, notProcurement}, calls: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := llmtest.NewCompleter().OnJSON(llm.SchemaProcurementRecord, tt.script...)
			_, err := NewPipeline(nil, Config{}, tt.text, &fakeRenderer{}, c).Extract(context.Background(), pdfDoc)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrNotProcurementDocument)
			assert.Len(t, c.Calls(""), tt.calls)
		})
	}
}

func TestTextParseNegativeFallsThroughToRaw(t *testing.T) {
	c := llmtest.NewCompleter().OnJSON(llm.SchemaProcurementRecord, notProcurement, consistent)
	res, err := NewPipeline(nil, Config{}, goodText, nil, c).Extract(context.Background(), pdfDoc)
	require.NoError(t, err)
	assert.Equal(t, constants.StageRawModelParse, res.AcceptedAt)
	assert.True(t, res.Record.IsProcurementRequest)
}

func TestCollaboratorErrorsPropagate(t *testing.T) {
	c := llmtest.NewCompleter().On(llm.SchemaProcurementRecord, llmtest.Response{Err: errors.New("503")})
	_, err := NewPipeline(nil, Config{}, goodText, nil, c).Extract(context.Background(), pdfDoc)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCollaboratorCall)
	assert.False(t, common.IsTimeout(err))

	refused := llmtest.NewCompleter().On(llm.SchemaProcurementRecord, llmtest.Response{Err: common.ErrRefusal})
	_, err = NewPipeline(nil, Config{}, goodText, nil, refused).Extract(context.Background(), pdfDoc)
	assert.ErrorIs(t, err, common.ErrRefusal)
	assert.ErrorIs(t, err, common.ErrCollaboratorCall)
}

func TestRecoveryCallErrorPropagates(t *testing.T) {
	c := llmtest.NewCompleter().
		OnJSON(llm.SchemaProcurementRecord, gappy).
		On(llm.SchemaFieldRecovery, llmtest.Response{Err: errors.New("boom")})
	r := &fakeRenderer{pages: []entity.PageImage{{Page: 1, MediaType: "image/png", Data: []byte("a")}}}
	_, err := NewPipeline(nil, Config{}, nil, r, c).Extract(context.Background(), pdfDoc)
	assert.ErrorIs(t, err, common.ErrCollaboratorCall)
}

func TestCallTimeoutIsClassified(t *testing.T) {
	c := llmtest.NewCompleter().On(llm.SchemaProcurementRecord, llmtest.Response{Block: true})
	p := NewPipeline(nil, Config{CallTimeout: 20 * time.Millisecond}, nil, nil, c)
	_, err := p.Extract(context.Background(), pdfDoc)
	require.Error(t, err)
	assert.True(t, common.IsTimeout(err))
	assert.ErrorIs(t, err, common.ErrCollaboratorCall)
}

func TestTextExtractorFailureSkipsToRaw(t *testing.T) {
	c := llmtest.NewCompleter().OnJSON(llm.SchemaProcurementRecord, consistent)
	res, err := NewPipeline(nil, Config{}, fakeText{err: errors.New("no temp dir")}, nil, c).Extract(context.Background(), pdfDoc)
	require.NoError(t, err)
	assert.Equal(t, constants.StageRawModelParse, res.AcceptedAt)
	assert.Empty(t, res.TextMethod)
}

func TestTextBudgetTruncatesPrompt(t *testing.T) {
	long := fakeText{res: entity.ExtractedText{Text: "abcdefghijklmnopqrstuvwxyz", Method: constants.MethodFast, Success: true}}
	c := llmtest.NewCompleter().OnJSON(llm.SchemaProcurementRecord, consistent)
	_, err := NewPipeline(nil, Config{TextParseBudget: 5}, long, nil, c).Extract(context.Background(), pdfDoc)
	require.NoError(t, err)
	user := c.Calls("")[0].Messages[len(c.Calls("")[0].Messages)-1]
	assert.Contains(t, user.Text, "abcde")
	assert.NotContains(t, user.Text, "abcdef")
}

func TestInvalidInput(t *testing.T) {
	p := NewPipeline(nil, Config{}, nil, nil, llmtest.NewCompleter())
	_, err := p.Extract(context.Background(), entity.RawDocument{ContentType: "application/pdf"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = p.Extract(context.Background(), entity.RawDocument{Data: []byte("x"), ContentType: "image/png"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestMissingCorrelationIDIsGenerated(t *testing.T) {
	c := llmtest.NewCompleter().OnJSON(llm.SchemaProcurementRecord, consistent)
	doc := pdfDoc
	doc.CorrelationID = ""
	res, err := NewPipeline(nil, Config{}, nil, nil, c).Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Record.CorrelationID)
}
