package pdftext

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	reZeroWidth = regexp.MustCompile("[\u200B-\u200D\uFEFF]")
	reHyphenEOL = regexp.MustCompile(`([\p{L}\p{N}])-\n([\p{L}\p{N}])`)
	reSpaceRun  = regexp.MustCompile(`[ \t]+`)
	reFormFeed  = regexp.MustCompile(`\f`)
)

// Clean normalizes extracted text: NFKC, no zero-width or control runes,
// line-end hyphenation joined, whitespace runs collapsed, lines trimmed and
// at most one blank line in a row.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = reFormFeed.ReplaceAllString(s, "\n")
	s = reZeroWidth.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r >= ' ' {
			return r
		}
		return -1
	}, s)
	s = reHyphenEOL.ReplaceAllString(s, "${1}${2}")
	s = reSpaceRun.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, ln)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// CharCount counts runes, which is what the usefulness threshold is measured in.
func CharCount(s string) int {
	return utf8.RuneCountInString(s)
}
