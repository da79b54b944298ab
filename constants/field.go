package constants

import (
	"strings"
)

// Field names a required procurement record field. Values match the JSON
// keys of the record so a FieldGap can be echoed straight into prompts.
type Field string

const (
	FieldVendorName Field = "vendorName"
	FieldVATNumber  Field = "vatNumber"
	FieldOrderLines Field = "orderLines"
)

var requiredFields = []Field{
	FieldVendorName,
	FieldVATNumber,
	FieldOrderLines,
}

// RequiredFields returns the mandatory fields in canonical order.
func RequiredFields() []Field {
	out := make([]Field, len(requiredFields))
	copy(out, requiredFields)
	return out
}

func AsStringSlice(fields []Field) []string {
	result := make([]string, len(fields))
	for i, f := range fields {
		result[i] = string(f)
	}
	return result
}

// Canonicalize maps loose spellings ("vendor", "vat_id", "lines") onto a Field.
func Canonicalize(input string) (Field, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer("_", "", "-", "", " ", "").Replace(normalized)

	synonyms := map[string]Field{
		"vendor":     FieldVendorName,
		"vendorname": FieldVendorName,
		"supplier":   FieldVendorName,
		"vat":        FieldVATNumber,
		"vatid":      FieldVATNumber,
		"vatnumber":  FieldVATNumber,
		"taxid":      FieldVATNumber,
		"lines":      FieldOrderLines,
		"orderlines": FieldOrderLines,
		"lineitems":  FieldOrderLines,
		"items":      FieldOrderLines,
	}
	if f, ok := synonyms[normalized]; ok {
		return f, true
	}
	return "", false
}
