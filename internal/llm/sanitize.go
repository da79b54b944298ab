package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	moneyFields     = []string{"totalPriceCents", "shippingCents", "taxCents", "totalDiscountCents"}
	stringFields    = []string{"title", "vendorName", "vatNumber"}
	lineMoneyFields = []string{"unitPriceCents", "totalPriceCents"}

	reMoneyNoise = regexp.MustCompile(`[^\d,.\-]`)
	reDigits     = regexp.MustCompile(`^-?\d+$`)
)

// SanitizeRecordJSON repairs the common ways a model drifts from the record
// schema so the document can still validate:
//   - renames known synonyms (discountCents -> totalDiscountCents, ...)
//   - coerces money given as floats or formatted strings into integer minor units
//   - turns blank strings into null and fills missing keys with null
//   - removes unknown keys
//
// withFlag keeps the isProcurementRequest key (extraction) or drops it (recovery).
// Returns the cleaned JSON and a list of what was changed.
func SanitizeRecordJSON(raw []byte, withFlag bool, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	changed := make([]string, 0, 8)
	rename := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			changed = append(changed, from+"->"+to)
		}
	}
	rename("discountCents", "totalDiscountCents")
	rename("vendor", "vendorName")
	rename("vatId", "vatNumber")
	rename("vat_id", "vatNumber")
	rename("order_lines", "orderLines")
	rename("lines", "orderLines")

	allowed := map[string]struct{}{"orderLines": {}}
	for _, k := range moneyFields {
		allowed[k] = struct{}{}
		if note, ok := coerceCentsField(m, k); ok {
			changed = append(changed, note)
		}
	}
	for _, k := range stringFields {
		allowed[k] = struct{}{}
		if note, ok := coerceStringField(m, k); ok {
			changed = append(changed, note)
		}
	}

	if withFlag {
		allowed["isProcurementRequest"] = struct{}{}
		if s, ok := m["isProcurementRequest"].(string); ok {
			m["isProcurementRequest"] = strings.EqualFold(strings.TrimSpace(s), "true")
			changed = append(changed, "isProcurementRequest(string)")
		}
	}

	lines, _ := m["orderLines"].([]any)
	cleanLines := make([]any, 0, len(lines))
	for i, raw := range lines {
		line, ok := raw.(map[string]any)
		if !ok {
			changed = append(changed, fmt.Sprintf("orderLines[%d](type)", i))
			continue
		}
		cleanLines = append(cleanLines, sanitizeLine(line, i, &changed))
	}
	m["orderLines"] = cleanLines

	for k := range m {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			changed = append(changed, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Debug("llm.sanitize.applied", "changes", changed)
	}
	return out, changed, nil
}

func sanitizeLine(line map[string]any, idx int, changed *[]string) map[string]any {
	out := map[string]any{}
	note := func(s string) { *changed = append(*changed, fmt.Sprintf("orderLines[%d].%s", idx, s)) }

	desc, _ := line["description"].(string)
	out["description"] = strings.TrimSpace(desc)

	switch u := line["unit"].(type) {
	case string:
		if s := strings.TrimSpace(u); s != "" {
			out["unit"] = s
		} else {
			out["unit"] = nil
		}
	default:
		out["unit"] = nil
	}

	switch q := line["quantity"].(type) {
	case float64:
		out["quantity"] = q
	case string:
		if d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(q), ",", ".")); err == nil {
			out["quantity"] = d.InexactFloat64()
		} else {
			out["quantity"] = 1.0
		}
		note("quantity(string)")
	default:
		out["quantity"] = 1.0
		note("quantity(default)")
	}

	for _, k := range lineMoneyFields {
		out[k] = line[k]
		if n, ok := coerceCentsField(out, k); ok {
			note(n)
		}
	}
	return out
}

// coerceCentsField normalizes m[k] into an integer or nil.
func coerceCentsField(m map[string]any, k string) (string, bool) {
	v, present := m[k]
	if !present {
		m[k] = nil
		return k + "(missing)", true
	}
	switch t := v.(type) {
	case nil:
		return "", false
	case float64:
		if t == math.Trunc(t) {
			return "", false
		}
		// fractional amounts are major units, as in ParseMoneyToCents
		m[k] = decimal.NewFromFloat(t).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
		return k + "(float)", true
	case string:
		if cents, ok := ParseMoneyToCents(t); ok {
			m[k] = cents
		} else {
			m[k] = nil
		}
		return k + "(string)", true
	default:
		m[k] = nil
		return k + "(type)", true
	}
}

func coerceStringField(m map[string]any, k string) (string, bool) {
	v, present := m[k]
	if !present {
		m[k] = nil
		return k + "(missing)", true
	}
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			m[k] = nil
			return k + "(empty)", true
		}
		m[k] = s
		return "", false
	default:
		m[k] = nil
		return k + "(type)", true
	}
}

// ParseMoneyToCents converts an amount string into integer minor units.
// A bare integer ("12345") is taken as already being in minor units.
// Anything with separators is a major-unit amount in either notation:
// "1.234,56", "1,234.56", "12,5", "€ 99.90". When both separators occur the
// last one is the decimal mark; a single separator is a decimal mark only if
// one or two digits follow it.
func ParseMoneyToCents(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = reMoneyNoise.ReplaceAllString(s, "")
	if s == "" || s == "-" {
		return 0, false
	}
	if reDigits.MatchString(s) {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, false
		}
		return d.IntPart(), true
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	decimalMark := byte(0)
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			decimalMark = '.'
		} else {
			decimalMark = ','
		}
	case lastDot >= 0:
		if tail := len(s) - lastDot - 1; tail >= 1 && tail <= 2 && strings.Count(s, ".") == 1 {
			decimalMark = '.'
		}
	case lastComma >= 0:
		if tail := len(s) - lastComma - 1; tail >= 1 && tail <= 2 && strings.Count(s, ",") == 1 {
			decimalMark = ','
		}
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == decimalMark && decimalMark != 0:
			b.WriteByte('.')
		case c == '.' || c == ',':
			// thousands separator
		default:
			b.WriteByte(c)
		}
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return 0, false
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), true
}
