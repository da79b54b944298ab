package embedding

import (
	"context"
	"strings"
	"unicode/utf8"
)

// MaxRequestChars caps the canonical request serialization.
const MaxRequestChars = 2000

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RequestText is the canonical serialization embedded for both queries and
// indexed history, so the two stay comparable.
func RequestText(title, vendor, vat string, lines []string) string {
	vatS := collapse(vat)
	if vatS == "" {
		vatS = "-"
	}
	parts := []string{
		"TITLE: " + collapse(title),
		"VENDOR: " + collapse(vendor),
		"VAT: " + vatS,
		"ORDER_LINES:",
	}
	n := 0
	for _, l := range lines {
		if s := collapse(l); s != "" {
			parts = append(parts, "- "+s)
			n++
		}
	}
	if n == 0 {
		parts = append(parts, "-")
	}
	out := strings.TrimSpace(strings.Join(parts, "\n"))
	if utf8.RuneCountInString(out) > MaxRequestChars {
		return string([]rune(out)[:MaxRequestChars]) + " …"
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
