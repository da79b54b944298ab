package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/procurement-intake/constants"
	"github.com/joseph-ayodele/procurement-intake/internal/bootstrap"
	"github.com/joseph-ayodele/procurement-intake/internal/classify"
	"github.com/joseph-ayodele/procurement-intake/internal/entity"
	"github.com/joseph-ayodele/procurement-intake/internal/evidence"
	"github.com/joseph-ayodele/procurement-intake/internal/export"
	"github.com/joseph-ayodele/procurement-intake/internal/extraction"
	"github.com/joseph-ayodele/procurement-intake/internal/llm"
	"github.com/joseph-ayodele/procurement-intake/internal/llm/llmtest"
)

type fakeText struct{}

func (fakeText) Extract(context.Context, []byte) (entity.ExtractedText, error) {
	return entity.ExtractedText{Text: "Angebot ACME GmbH", Method: constants.MethodLayout, Success: true}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if bytes.Contains([]byte(text), []byte("laptop")) {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

const (
	consistent = `{"isProcurementRequest":true,"title":"Laptops","vendorName":"ACME GmbH","vatNumber":"DE123456789",
		"totalPriceCents":17500,"shippingCents":null,"taxCents":null,"totalDiscountCents":null,
		"orderLines":[
			{"description":"Dock","unit":"pcs","quantity":1,"unitPriceCents":10000,"totalPriceCents":10000},
			{"description":"Cable","unit":"pcs","quantity":3,"unitPriceCents":2500,"totalPriceCents":7500}]}`
	notProcurement = `{"isProcurementRequest":false,"title":null,"vendorName":null,"vatNumber":null,
		"totalPriceCents":null,"shippingCents":null,"taxCents":null,"totalDiscountCents":null,"orderLines":[]}`
	scores = `{"scores":[{"id":1,"score":0.2},{"id":2,"score":0.9}],"rationale":"hardware"}`
	groups = `[{"id":1,"label":"Software","category":"Information Technology"},
		{"id":2,"label":"Hardware","category":"Information Technology"}]`
)

func stubApp(t *testing.T, app *bootstrap.App) {
	t.Helper()
	orig := newApp
	newApp = func(context.Context, *slog.Logger) (*bootstrap.App, error) { return app, nil }
	t.Cleanup(func() { newApp = orig })
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestVersionCmd(t *testing.T) {
	orig := version
	version = "test-1.0.0"
	defer func() { version = orig }()

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "procurectl version test-1.0.0")
}

func TestExtractCmd_WritesWorkbook(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.pdf", "%PDF-1.7 a")
	writeFile(t, dir, "b.PDF", "%PDF-1.7 b")
	writeFile(t, dir, "notes.txt", "skip me")
	out := filepath.Join(dir, "out.xlsx")

	// One worker keeps the scripted replies in file order.
	c := llmtest.NewCompleter().OnJSON(llm.SchemaProcurementRecord, consistent, notProcurement, notProcurement)
	stubApp(t, &bootstrap.App{
		Extraction: extraction.NewPipeline(nil, extraction.Config{}, fakeText{}, nil, c),
		Evidence:   evidence.NewMemory(),
	})

	stdout, err := execute(t, "extract", "--dir", dir, "--out", out, "--workers", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "processed 2 file(s): 1 extracted, 1 failed")
	assert.Contains(t, stdout, "FAIL "+filepath.Join(dir, "b.PDF"))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(export.SheetRequests)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, filepath.Join(dir, "a.pdf"), rows[1][0])
	assert.Equal(t, "ACME GmbH", rows[1][6])
}

func TestExtractCmd_NoFiles(t *testing.T) {
	_, err := execute(t, "extract", "--dir", t.TempDir())
	assert.EqualError(t, err, "no PDF files to process")
}

func TestCollectPDFs(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	b := writeFile(t, filepath.Join(dir, "sub"), "b.pdf", "")
	writeFile(t, dir, "c.png", "")

	got, err := collectPDFs(dir, []string{a})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, got)

	_, err = collectPDFs(filepath.Join(dir, "missing"), nil)
	assert.Error(t, err)
}

func TestClassifyCmd_FromFlags(t *testing.T) {
	g := writeFile(t, t.TempDir(), "groups.json", groups)
	c := llmtest.NewCompleter().OnJSON(llm.SchemaCommodityScoring, scores)
	stubApp(t, &bootstrap.App{
		Classify: classify.NewPipeline(nil, classify.Config{}, c, nil, nil),
		Evidence: evidence.NewMemory(),
	})

	out, err := execute(t, "classify", "--groups", g, "--title", "Dell laptops", "--vendor", "Dell", "--line", "Latitude 7440")
	require.NoError(t, err)
	assert.Contains(t, out, `"suggested_commodity_group_id": 2`)
	assert.Contains(t, out, `"confidence": 0.9`)

	calls := c.Calls(llm.SchemaCommodityScoring)
	require.Len(t, calls, 1)
}

func TestClassifyCmd_FromPDF(t *testing.T) {
	dir := t.TempDir()
	g := writeFile(t, dir, "groups.json", groups)
	pdf := writeFile(t, dir, "offer.pdf", "%PDF-1.7")
	c := llmtest.NewCompleter().
		OnJSON(llm.SchemaProcurementRecord, consistent).
		OnJSON(llm.SchemaCommodityScoring, scores)
	stubApp(t, &bootstrap.App{
		Extraction: extraction.NewPipeline(nil, extraction.Config{}, fakeText{}, nil, c),
		Classify:   classify.NewPipeline(nil, classify.Config{}, c, nil, nil),
		Evidence:   evidence.NewMemory(),
	})

	out, err := execute(t, "classify", "--groups", g, "--pdf", pdf)
	require.NoError(t, err)
	assert.Contains(t, out, `"suggested_commodity_group_id": 2`)
}

func TestClassifyCmd_InputErrors(t *testing.T) {
	dir := t.TempDir()
	g := writeFile(t, dir, "groups.json", groups)
	empty := writeFile(t, dir, "empty.json", "[]")
	broken := writeFile(t, dir, "broken.json", "{")

	_, err := execute(t, "classify")
	assert.Error(t, err)

	_, err = execute(t, "classify", "--groups", g)
	assert.EqualError(t, err, "give --pdf, or --title and --line")

	_, err = execute(t, "classify", "--groups", empty, "--title", "x")
	assert.ErrorContains(t, err, "lists no commodity groups")

	_, err = execute(t, "classify", "--groups", broken, "--title", "x")
	assert.ErrorContains(t, err, "parse")
}

func TestEvidenceCmds(t *testing.T) {
	store := evidence.NewMemory()
	stubApp(t, &bootstrap.App{Embedder: fakeEmbedder{}, Evidence: store})

	out, err := execute(t, "evidence", "add", "--id", "r1", "--group", "2", "--title", "laptop refresh", "--line", "laptop")
	require.NoError(t, err)
	assert.Contains(t, out, "stored r1 under group 2")

	_, err = execute(t, "evidence", "add", "--id", "r2", "--group", "1", "--title", "adobe licenses")
	require.NoError(t, err)

	out, err = execute(t, "evidence", "search", "--title", "laptop", "--group", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "TITLE: laptop refresh")
	assert.NotContains(t, out, "adobe")

	out, err = execute(t, "evidence", "relabel", "--id", "r1", "--group", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "relabeled r1 to group 3")

	got, err := store.Search(context.Background(), []float32{1, 0}, 5, "3")
	require.NoError(t, err)
	require.Len(t, got, 1)

	out, err = execute(t, "evidence", "delete", "--id", "r1")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted r1")

	got, err = store.Search(context.Background(), []float32{1, 0}, 5, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].Tag)
}

func TestEvidenceCmds_RequireID(t *testing.T) {
	stubApp(t, &bootstrap.App{Embedder: fakeEmbedder{}, Evidence: evidence.NewMemory()})

	_, err := execute(t, "evidence", "add", "--group", "2")
	assert.EqualError(t, err, "--id and --group are required")
	_, err = execute(t, "evidence", "delete")
	assert.EqualError(t, err, "--id is required")
	_, err = execute(t, "evidence", "relabel", "--id", "r1")
	assert.EqualError(t, err, "--id and --group are required")
}
