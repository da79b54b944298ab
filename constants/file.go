package constants

import "strings"

// PDFContentTypes holds the content types accepted as PDF uploads.
var PDFContentTypes = map[string]struct{}{
	"application/pdf":      {},
	"application/x-pdf":    {},
	"application/acrobat":  {},
	"applications/vnd.pdf": {},
}

// AllowedExtensions holds the default file extensions picked up by batch extraction.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDFContentType reports whether ct names a PDF. Parameters such as
// "; charset=binary" are ignored. An empty content type is accepted.
func IsPDFContentType(ct string) bool {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return true
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	_, ok := PDFContentTypes[strings.ToLower(strings.TrimSpace(ct))]
	return ok
}
