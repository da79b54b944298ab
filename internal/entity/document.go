package entity

import (
	"github.com/joseph-ayodele/procurement-intake/constants"
)

// RawDocument is the caller-owned upload handed to the extraction pipeline.
type RawDocument struct {
	Data          []byte
	Filename      string // diagnostics only
	ContentType   string
	CorrelationID string
}

// ExtractedText is the output of the local text-layer backends.
type ExtractedText struct {
	Text    string
	Method  constants.ExtractionMethod
	Success bool
}

// PageImage is one rasterized page used by the recovery pass.
type PageImage struct {
	Page      int
	MediaType string
	Data      []byte
}
