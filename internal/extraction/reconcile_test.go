package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/procurement-intake/constants"
	"github.com/joseph-ayodele/procurement-intake/internal/entity"
)

func lines() []entity.OrderLine {
	return []entity.OrderLine{
		{Description: "Dock", Quantity: 1, UnitPriceCents: 10000, TotalPriceCents: 10000},
		{Description: "Cable", Quantity: 3, UnitPriceCents: 2500, TotalPriceCents: 7500},
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		rec      entity.ProcurementRecord
		computed int64
		diff     int64
		ok       bool
	}{
		{name: "exact", rec: entity.ProcurementRecord{OrderLines: lines(), TotalPriceCents: entity.Cents(17500)}, computed: 17500, ok: true},
		{name: "off by 500", rec: entity.ProcurementRecord{OrderLines: lines(), TotalPriceCents: entity.Cents(17000)}, computed: 17500, diff: 500},
		{name: "within two cents", rec: entity.ProcurementRecord{OrderLines: lines(), TotalPriceCents: entity.Cents(17502)}, computed: 17500, diff: 2, ok: true},
		{name: "three cents fails", rec: entity.ProcurementRecord{OrderLines: lines(), TotalPriceCents: entity.Cents(17497)}, computed: 17500, diff: 3},
		{
			name: "shipping tax discount",
			rec: entity.ProcurementRecord{
				OrderLines:         lines(),
				ShippingCents:      entity.Cents(500),
				TaxCents:           entity.Cents(3420),
				TotalDiscountCents: entity.Cents(1000),
				TotalPriceCents:    entity.Cents(20420),
			},
			computed: 20420, ok: true,
		},
		{name: "missing declared counts as zero", rec: entity.ProcurementRecord{OrderLines: lines()}, computed: 17500, diff: 17500},
		{name: "empty record", rec: entity.ProcurementRecord{}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Reconcile(tt.rec)
			assert.Equal(t, tt.computed, r.Computed)
			assert.Equal(t, tt.diff, r.Difference)
			assert.Equal(t, tt.ok, r.WithinTolerance)
		})
	}
}

func TestGap(t *testing.T) {
	assert.Equal(t,
		entity.FieldGap{constants.FieldVendorName, constants.FieldVATNumber, constants.FieldOrderLines},
		Gap(entity.ProcurementRecord{VendorName: "  "}))
	assert.True(t, Gap(entity.ProcurementRecord{VendorName: "A", VATNumber: "B", OrderLines: lines()}).Empty())
	assert.Equal(t, entity.FieldGap{constants.FieldOrderLines}, Gap(entity.ProcurementRecord{VendorName: "A", VATNumber: "B"}))
}

func TestMergeNeverOverwritesOrAliases(t *testing.T) {
	base := entity.ProcurementRecord{VendorName: "Base Vendor", OrderLines: lines(), TotalPriceCents: entity.Cents(1)}
	rec := entity.ProcurementRecord{
		VendorName: "Other Vendor",
		VATNumber:  " DE1 ",
		OrderLines: []entity.OrderLine{{Description: "replacement"}},
	}
	gap := entity.FieldGap{constants.FieldVendorName, constants.FieldVATNumber, constants.FieldOrderLines}

	out, filled := Merge(base, rec, gap)
	assert.Equal(t, "Base Vendor", out.VendorName)
	assert.Equal(t, "DE1", out.VATNumber)
	assert.Equal(t, lines(), out.OrderLines)
	assert.Equal(t, []constants.Field{constants.FieldVATNumber}, filled)

	out.OrderLines[0].Description = "mutated"
	*out.TotalPriceCents = 99
	assert.Equal(t, "Dock", base.OrderLines[0].Description)
	assert.Empty(t, base.VATNumber)
	assert.Equal(t, int64(1), *base.TotalPriceCents)
}

func TestMergeIgnoresFieldsOutsideGap(t *testing.T) {
	base := entity.ProcurementRecord{}
	rec := entity.ProcurementRecord{VendorName: "V", VATNumber: "X", Title: "T"}
	out, filled := Merge(base, rec, entity.FieldGap{constants.FieldVATNumber})
	assert.Empty(t, out.VendorName)
	assert.Empty(t, out.Title)
	assert.Equal(t, "X", out.VATNumber)
	assert.Equal(t, []constants.Field{constants.FieldVATNumber}, filled)
}
