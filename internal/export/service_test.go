package export

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/procurement-intake/constants"
	"github.com/joseph-ayodele/procurement-intake/internal/common"
	"github.com/joseph-ayodele/procurement-intake/internal/entity"
)

func TestRecordsXLSX(t *testing.T) {
	ok := entity.ExtractionResult{
		Record: entity.ProcurementRecord{
			Title:           "Laptops",
			VendorName:      "ACME GmbH",
			VATNumber:       "DE123",
			TotalPriceCents: entity.Cents(17500),
			OrderLines: []entity.OrderLine{
				{Description: "Dock", Unit: "pcs", Quantity: 1, UnitPriceCents: 10000, TotalPriceCents: 10000},
				{Description: "Cable", Unit: "pcs", Quantity: 3, UnitPriceCents: 2500, TotalPriceCents: 7400},
			},
			CorrelationID: "trace-1",
		},
		AcceptedAt:     constants.StageTextModelParse,
		TextMethod:     constants.MethodLayout,
		Reconciliation: entity.ReconciliationResult{Computed: 17400, Declared: 17500, Difference: 100},
		Gap:            entity.FieldGap{constants.FieldVATNumber},
	}
	rows := []Row{
		{Source: "a.pdf", Result: ok},
		{Source: "b.pdf", Err: common.NotProcurementDocument("RAW_MODEL_PARSE")},
		{Source: "c.pdf", Err: errors.New("disk on fire")},
	}

	b, err := NewService(nil).RecordsXLSX(rows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SheetRequests, SheetOrderLines}, f.GetSheetList())

	req, err := f.GetRows(SheetRequests)
	require.NoError(t, err)
	require.Len(t, req, 4)
	assert.Equal(t, "File", req[0][0])
	assert.Equal(t, "a.pdf", req[1][0])
	assert.Equal(t, "trace-1", req[1][1])
	assert.Equal(t, "OK", req[1][2])
	assert.Equal(t, "TEXT_MODEL_PARSE", req[1][3])
	assert.Equal(t, "ACME GmbH", req[1][6])
	assert.Equal(t, "175.00", req[1][8])
	assert.Equal(t, "vatNumber", req[1][14])
	assert.Equal(t, "REJECTED", req[2][2])
	assert.Equal(t, "FAILED", req[3][2])
	assert.Contains(t, req[3][16], "disk on fire")

	lines, err := f.GetRows(SheetOrderLines)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "Dock", lines[1][2])
	assert.Equal(t, "100.00", lines[1][5])
	assert.Equal(t, "TRUE", lines[1][7])
	assert.Equal(t, "FALSE", lines[2][7])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
