package entity

import (
	"math"
	"slices"

	"github.com/joseph-ayodele/procurement-intake/constants"
)

// OrderLine is one line item. Money is in integer minor units.
type OrderLine struct {
	Description     string  `json:"description"`
	Unit            string  `json:"unit"`
	Quantity        float64 `json:"quantity"`
	UnitPriceCents  int64   `json:"unitPriceCents"`
	TotalPriceCents int64   `json:"totalPriceCents"`
}

// Consistent reports whether the line total equals unit price times quantity
// rounded to the nearest minor unit.
func (l OrderLine) Consistent() bool {
	return l.TotalPriceCents == int64(math.Round(float64(l.UnitPriceCents)*l.Quantity))
}

// ProcurementRecord is the structured result of document extraction.
// Optional fields stay empty (or nil) when they could not be extracted.
type ProcurementRecord struct {
	IsProcurementRequest bool        `json:"isProcurementRequest"`
	Title                string      `json:"title,omitempty"`
	VendorName           string      `json:"vendorName,omitempty"`
	VATNumber            string      `json:"vatNumber,omitempty"`
	TotalPriceCents      *int64      `json:"totalPriceCents,omitempty"`
	ShippingCents        *int64      `json:"shippingCents,omitempty"`
	TaxCents             *int64      `json:"taxCents,omitempty"`
	TotalDiscountCents   *int64      `json:"totalDiscountCents,omitempty"`
	OrderLines           []OrderLine `json:"orderLines"`
	CorrelationID        string      `json:"trace_id,omitempty"`
}

// Clone returns a deep copy so merges never alias the caller's record.
func (r ProcurementRecord) Clone() ProcurementRecord {
	out := r
	out.TotalPriceCents = cloneInt(r.TotalPriceCents)
	out.ShippingCents = cloneInt(r.ShippingCents)
	out.TaxCents = cloneInt(r.TaxCents)
	out.TotalDiscountCents = cloneInt(r.TotalDiscountCents)
	out.OrderLines = slices.Clone(r.OrderLines)
	return out
}

// InconsistentLines returns the 1-based numbers of order lines whose total
// disagrees with unit price times quantity.
func (r ProcurementRecord) InconsistentLines() []int {
	var out []int
	for i, l := range r.OrderLines {
		if !l.Consistent() {
			out = append(out, i+1)
		}
	}
	return out
}

// LineDescriptions returns the non-empty order line descriptions.
func (r ProcurementRecord) LineDescriptions() []string {
	out := make([]string, 0, len(r.OrderLines))
	for _, l := range r.OrderLines {
		if l.Description != "" {
			out = append(out, l.Description)
		}
	}
	return out
}

func cloneInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Cents is a small helper for building optional money fields.
func Cents(v int64) *int64 { return &v }

// ValueOrZero dereferences an optional money field.
func ValueOrZero(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// ReconciliationResult compares declared and computed totals.
type ReconciliationResult struct {
	Computed        int64
	Declared        int64
	Difference      int64
	WithinTolerance bool
}

// FieldGap lists the required fields absent from a record, in canonical order.
type FieldGap []constants.Field

func (g FieldGap) Empty() bool { return len(g) == 0 }

func (g FieldGap) Contains(f constants.Field) bool {
	return slices.Contains(g, f)
}

func (g FieldGap) Strings() []string {
	return constants.AsStringSlice(g)
}

// ExtractionResult is the record plus how the pipeline got there.
type ExtractionResult struct {
	Record         ProcurementRecord
	AcceptedAt     constants.Stage
	TextMethod     constants.ExtractionMethod
	Reconciliation ReconciliationResult
	Gap            FieldGap
	Recovered      []constants.Field
	// InconsistentLines flags accepted order lines that fail the line total check.
	InconsistentLines []int
}
