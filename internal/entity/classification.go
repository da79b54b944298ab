package entity

import (
	"strconv"

	"github.com/joseph-ayodele/procurement-intake/constants"
)

// CommodityCandidate is one entry of the caller-supplied category taxonomy.
type CommodityCandidate struct {
	ID       int    `json:"id"`
	Label    string `json:"label"`
	Category string `json:"category,omitempty"`
}

// Tag is the evidence index filter value for this candidate.
func (c CommodityCandidate) Tag() string {
	return strconv.Itoa(c.ID)
}

// ScoredCandidate is a candidate id with a score clamped to [0,1].
type ScoredCandidate struct {
	ID    int     `json:"id"`
	Score float64 `json:"score"`
}

// EvidenceExample is a historical request snippet labeled with a candidate.
type EvidenceExample struct {
	Text       string  `json:"text"`
	Tag        string  `json:"tag"`
	Similarity float64 `json:"similarity"`
}

// ClassificationRequest is the classification pipeline input.
type ClassificationRequest struct {
	Title          string               `json:"title"`
	VendorName     string               `json:"vendor_name"`
	VATID          string               `json:"vat_id,omitempty"`
	OrderLinesText []string             `json:"order_lines_text"`
	Candidates     []CommodityCandidate `json:"available_commodity_groups"`
	CorrelationID  string               `json:"trace_id,omitempty"`
}

// ClassificationDecision is the classification pipeline output.
// ChosenID is nil only when no candidate qualified.
type ClassificationDecision struct {
	ChosenID      *int            `json:"suggested_commodity_group_id"`
	Confidence    float64         `json:"confidence"`
	CorrelationID string          `json:"trace_id,omitempty"`
	DecidedAt     constants.Stage `json:"-"`
}
