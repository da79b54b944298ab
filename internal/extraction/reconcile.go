package extraction

import (
	"strings"

	"github.com/joseph-ayodele/procurement-intake/constants"
	"github.com/joseph-ayodele/procurement-intake/internal/entity"
)

// ToleranceCents is the largest accepted gap between computed and declared totals.
const ToleranceCents = 2

// Reconcile compares sum(line totals) + shipping + tax - discount with the
// declared total. Missing amounts count as zero.
func Reconcile(rec entity.ProcurementRecord) entity.ReconciliationResult {
	var lines int64
	for _, l := range rec.OrderLines {
		lines += l.TotalPriceCents
	}
	computed := lines +
		entity.ValueOrZero(rec.ShippingCents) +
		entity.ValueOrZero(rec.TaxCents) -
		entity.ValueOrZero(rec.TotalDiscountCents)
	declared := entity.ValueOrZero(rec.TotalPriceCents)

	diff := computed - declared
	if diff < 0 {
		diff = -diff
	}
	return entity.ReconciliationResult{
		Computed:        computed,
		Declared:        declared,
		Difference:      diff,
		WithinTolerance: diff <= ToleranceCents,
	}
}

// Gap lists the required fields the record lacks.
func Gap(rec entity.ProcurementRecord) entity.FieldGap {
	var gap entity.FieldGap
	for _, f := range constants.RequiredFields() {
		if fieldEmpty(rec, f) {
			gap = append(gap, f)
		}
	}
	return gap
}

func fieldEmpty(rec entity.ProcurementRecord, f constants.Field) bool {
	switch f {
	case constants.FieldVendorName:
		return strings.TrimSpace(rec.VendorName) == ""
	case constants.FieldVATNumber:
		return strings.TrimSpace(rec.VATNumber) == ""
	case constants.FieldOrderLines:
		return len(rec.OrderLines) == 0
	}
	return false
}

// Satisfied is the acceptance check: totals reconcile and nothing required is missing.
func Satisfied(rec entity.ProcurementRecord) (entity.ReconciliationResult, entity.FieldGap, bool) {
	r := Reconcile(rec)
	g := Gap(rec)
	return r, g, r.WithinTolerance && g.Empty()
}

// Merge fills the gap fields of base that are still empty from recovered.
// Populated fields are never overwritten and base itself is not modified.
func Merge(base, recovered entity.ProcurementRecord, gap entity.FieldGap) (entity.ProcurementRecord, []constants.Field) {
	out := base.Clone()
	var filled []constants.Field
	for _, f := range gap {
		if !fieldEmpty(out, f) || fieldEmpty(recovered, f) {
			continue
		}
		switch f {
		case constants.FieldVendorName:
			out.VendorName = strings.TrimSpace(recovered.VendorName)
		case constants.FieldVATNumber:
			out.VATNumber = strings.TrimSpace(recovered.VATNumber)
		case constants.FieldOrderLines:
			out.OrderLines = append([]entity.OrderLine(nil), recovered.OrderLines...)
		}
		filled = append(filled, f)
	}
	return out, filled
}
