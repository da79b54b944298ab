package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/procurement-intake/constants"
)

func TestOrderLineConsistent(t *testing.T) {
	assert.True(t, OrderLine{UnitPriceCents: 2500, Quantity: 3, TotalPriceCents: 7500}.Consistent())
	assert.True(t, OrderLine{UnitPriceCents: 333, Quantity: 1.5, TotalPriceCents: 500}.Consistent())
	assert.False(t, OrderLine{UnitPriceCents: 2500, Quantity: 3, TotalPriceCents: 7000}.Consistent())
}

func TestCloneDoesNotAlias(t *testing.T) {
	base := ProcurementRecord{
		VendorName:    "ACME",
		ShippingCents: Cents(100),
		OrderLines:    []OrderLine{{Description: "a"}},
	}
	cp := base.Clone()
	*cp.ShippingCents = 5
	cp.OrderLines[0].Description = "b"
	cp.VendorName = "Other"

	assert.Equal(t, int64(100), *base.ShippingCents)
	assert.Equal(t, "a", base.OrderLines[0].Description)
	assert.Equal(t, "ACME", base.VendorName)
	assert.Nil(t, ProcurementRecord{}.Clone().TaxCents)
}

func TestFieldGap(t *testing.T) {
	g := FieldGap{constants.FieldVATNumber}
	assert.False(t, g.Empty())
	assert.True(t, g.Contains(constants.FieldVATNumber))
	assert.False(t, g.Contains(constants.FieldOrderLines))
	assert.Equal(t, []string{"vatNumber"}, g.Strings())
	assert.True(t, FieldGap(nil).Empty())
}

func TestValueOrZero(t *testing.T) {
	assert.Equal(t, int64(0), ValueOrZero(nil))
	assert.Equal(t, int64(7), ValueOrZero(Cents(7)))
	assert.Equal(t, "12", CommodityCandidate{ID: 12}.Tag())
}

func TestInconsistentLines(t *testing.T) {
	rec := ProcurementRecord{OrderLines: []OrderLine{
		{Quantity: 2, UnitPriceCents: 1000, TotalPriceCents: 2000},
		{Quantity: 2, UnitPriceCents: 1000, TotalPriceCents: 1500},
		{Quantity: 1.5, UnitPriceCents: 333, TotalPriceCents: 500},
	}}
	assert.Equal(t, []int{2}, rec.InconsistentLines())
	assert.Empty(t, ProcurementRecord{}.InconsistentLines())
}
