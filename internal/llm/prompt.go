package llm

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/procurement-intake/internal/entity"
)

const rawDocumentFilename = "potential_procurement_request.pdf"

// ExtractionSystemPrompt drives both the text and the raw-document parse.
const ExtractionSystemPrompt = `You analyze procurement documents.

1. DETECTION
Decide first whether the document is procurement related: an offer, quote, invoice, order confirmation or purchase request.
If it is not, set isProcurementRequest=false and leave every other field null or empty.

2. CORE FIELDS
- title: short heading or subject, e.g. "Offer 1234", "Invoice #A120", "Angebot", "Rechnung", "Bestellung".
- vendorName: the supplier issuing the document (Supplier, Vendor, Issued by, Lieferant, Anbieter, Firma).
- vatNumber: the supplier VAT or tax id (VAT ID, Tax ID, USt-IdNr., Steuernummer), e.g. "DE123456789".

3. ORDER LINES
Extract every product, service or fee listed as a line item in the main body:
- description: human readable name of the item or service.
- unit: unit of measure (pcs, item, hour, license, Stk., Std., Stück); "-" when not given.
- quantity: numeric quantity; 1 when a single item is shown without a quantity.
- unitPriceCents: net unit price in integer cents after any per-line discount.
- totalPriceCents: quantity x unitPriceCents in integer cents; prefer an explicitly printed line total.
Rules:
- Use net (pre-tax) values for lines. Apply per-line discounts ("100.00 - 10% = 90.00" gives 9000).
- Never create lines for taxes or totals.
- Shipping or handling printed as a normal line stays a line; then leave shippingCents null.
- A document discount already shown as a line must not be repeated in totalDiscountCents.
- Alternatives and options are excluded. Markers (any case): "Alternativ", "Alt.", "Alternative", "Option", "Optional",
  "Variante", "wahlweise", "(Alt.)", "[Alt]", and lines under headings with those words.
  Include one only when the document states it was selected, or when it has a nonzero quantity and the totals
  reconciliation below needs it. When unsure, exclude it.

4. SUMMARY TOTALS
- totalPriceCents: the final payable total (Total, Grand Total, Amount Due, Endsumme, Gesamtsumme, Gesamtbetrag).
- shippingCents: shipping, delivery, freight or handling (Versandkosten, Lieferung, Fracht, Verpackung) only when not a line.
- taxCents: total VAT or sales tax (MwSt., USt., Umsatzsteuer).
- totalDiscountCents: document level discount (Rabatt, Nachlass, Skonto) only when not a line.

5. DOUBLE COUNTING
Line items win. A charge or discount that appears as a line is never copied into a summary field.

6. NORMALIZATION
- Amounts in either notation ("1.234,56" or "1,234.56") become integer cents (123456).
- Drop currency symbols and thousands separators. Assume one currency per document.
- Ignore page subtotals (Page Total, Seitensumme).
- Leave a field null when it cannot be read with confidence. Never guess.

7. RECONCILIATION
computed = sum(orderLines.totalPriceCents) + shippingCents + taxCents - totalDiscountCents (null counts as 0).
If computed differs from totalPriceCents by more than 2 cents, look for double counting or missed amounts:
first drop alternative lines, then prefer leaving shippingCents and totalDiscountCents empty, and only add an
alternative line when it is explicitly selected or required to match the final total.

8. EXAMPLES
- "Price 100.00 less 10% = 90.00" gives unitPriceCents=9000 and totalPriceCents=9000.
- "Express delivery service 25.00 EUR" as an item is an order line and shippingCents=null.
- "Subtotal 1000.00 | Shipping 25.00 | Total 1025.00" gives shippingCents=2500 and no extra line.`

// BuildTextExtractionMessages builds the parse request over locally
// extracted text, truncated to budget runes.
func BuildTextExtractionMessages(text string, budget int) []Message {
	var b strings.Builder
	b.WriteString("The text below was extracted from a PDF document.\n\n")
	b.WriteString("Decide whether it is a procurement document and, if so, extract the procurement fields described above.\n\n")
	b.WriteString("DOCUMENT TEXT:\n--------------------\n")
	b.WriteString(Truncate(text, budget))
	return []Message{
		{Role: RoleSystem, Text: ExtractionSystemPrompt},
		{Role: RoleUser, Text: b.String()},
	}
}

// BuildRawExtractionMessages attaches the original PDF bytes instead of derived text.
func BuildRawExtractionMessages(pdf []byte) []Message {
	return []Message{
		{Role: RoleSystem, Text: ExtractionSystemPrompt},
		{
			Role: RoleUser,
			Text: "Extract all procurement information (title, vendor, VAT number, totals and order lines) from the attached PDF. " +
				"If it is not a procurement document, set isProcurementRequest=false.",
			Attachments: []Attachment{{
				Kind:      AttachmentFile,
				Filename:  rawDocumentFilename,
				MediaType: "application/pdf",
				Data:      pdf,
			}},
		},
	}
}

// BuildRecoveryMessages asks only for the missing fields, with the current
// best-effort record as context and the rendered pages attached.
func BuildRecoveryMessages(missing []string, current []byte, pages []entity.PageImage) []Message {
	var b strings.Builder
	b.WriteString("A previous pass extracted the record below but could not find some required fields.\n\n")
	b.WriteString("MISSING FIELDS:\n")
	for _, f := range missing {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteByte('\n')
	}
	b.WriteString("\nCURRENT RECORD:\n")
	b.Write(current)
	b.WriteString("\n\nRead the attached page images and fill in ONLY the missing fields. ")
	b.WriteString("Return null (or an empty orderLines list) for anything not visible. Other fields may be copied from the current record.")

	atts := make([]Attachment, 0, len(pages))
	for _, p := range pages {
		atts = append(atts, Attachment{
			Kind:      AttachmentImage,
			Filename:  fmt.Sprintf("page-%d.png", p.Page),
			MediaType: p.MediaType,
			Data:      p.Data,
		})
	}
	return []Message{
		{Role: RoleSystem, Text: ExtractionSystemPrompt},
		{Role: RoleUser, Text: b.String(), Attachments: atts},
	}
}

const scoringSystemPrompt = `You classify procurement requests. Given one request and a list of candidate commodity groups, rate how well each group fits.

SCORING
- Give each candidate id a calibrated score in [0,1]. Only return ids scoring above 0.0; omitted ids count as 0.0.
- Use the whole range: strong matches 0.8-1.0, weak but relevant 0.1-0.3. Prefer low over middling when unsure.
- Avoid exact ties where possible.

EVIDENCE WEIGHT
- order lines about 60%, title about 30%, vendor about 10% (only when the vendor clearly signals a domain, e.g. Adobe -> Software).

CATEGORY CUES
- Information Technology / Software: licenses, subscriptions, SaaS, named applications, activation keys.
- Information Technology / Hardware: laptops, monitors, docks, peripherals, devices.
- Information Technology / IT Services: installation, integration, managed services, support.
- Marketing & Advertising: campaigns, banners, paid posts, ad buys.
- Facility Management: painting, flooring, repairs, cleaning.
- Logistics: shipping labels, parcel and courier services.
- Production: machines, line equipment, spare parts.

TIE BREAKING
1) groups named or strongly implied by the order lines
2) the more specific subcategory
3) clear vendor-domain hints

Never invent ids. Add a short rationale.`

// BuildScoringMessages renders the request and every candidate group.
func BuildScoringMessages(req entity.ClassificationRequest) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "REQUEST TITLE:\n%s\n\n", req.Title)
	fmt.Fprintf(&b, "VENDOR NAME:\n%s\n\n", req.VendorName)
	fmt.Fprintf(&b, "VENDOR VAT ID:\n%s\n\n", orDash(req.VATID))
	b.WriteString("ORDER LINES:\n")
	if len(req.OrderLinesText) == 0 {
		b.WriteString("-")
	} else {
		b.WriteString(strings.Join(req.OrderLinesText, "\n"))
	}
	b.WriteString("\n\nCANDIDATE COMMODITY GROUPS (id, category, label):\n")
	for _, c := range req.Candidates {
		fmt.Fprintf(&b, "- [%d] %s / %s\n", c.ID, orDash(c.Category), c.Label)
	}
	b.WriteString("\nScore the listed ids in [0,1] by how well they match this request, then explain briefly.")
	return []Message{
		{Role: RoleSystem, Text: scoringSystemPrompt},
		{Role: RoleUser, Text: b.String()},
	}
}

// RerankCandidate is a top-N candidate with its prior score and evidence.
type RerankCandidate struct {
	Candidate  entity.CommodityCandidate
	PriorScore float64
	Examples   []string
}

const rerankSystemPrompt = `You classify procurement requests.

Input: one new request (title, vendor, VAT id, order lines) and a few candidate commodity groups, each with its id, label,
category, prior score and one or two historical requests previously labeled with that group.

Task: choose the single best matching group id and give a calibrated probability in [0,1].

Principles:
- Match mainly on semantic similarity between the new request and each candidate's examples.
- Use concrete nouns, products and actions in the order lines and title to confirm or reject a match.
- Prefer specific subcategories over generic ones when the evidence is similar.
- When several candidates are plausible pick the closest and lower the probability.
- Strong evidence: 0.8-1.0. Weak evidence overall: 0.3 or less.
- Only choose among the listed ids.`

// BuildRerankMessages renders the request plus each candidate block.
func BuildRerankMessages(req entity.ClassificationRequest, cands []RerankCandidate) []Message {
	var b strings.Builder
	b.WriteString("REQUEST\n--------------------\n")
	fmt.Fprintf(&b, "TITLE: %s\nVENDOR: %s\nVAT: %s\nORDER LINES:\n", req.Title, req.VendorName, orDash(req.VATID))
	if len(req.OrderLinesText) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, l := range req.OrderLinesText {
		fmt.Fprintf(&b, "  * %s\n", l)
	}
	b.WriteString("\nCANDIDATE COMMODITY GROUPS\n--------------------\n")
	for i, c := range cands {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "---\nID: %d\nLABEL: %s\nCATEGORY: %s\nPRIOR SCORE: %.2f\nEXAMPLES:\n",
			c.Candidate.ID, c.Candidate.Label, orDash(c.Candidate.Category), c.PriorScore)
		if len(c.Examples) == 0 {
			b.WriteString("    (no examples)\n")
		}
		for _, ex := range c.Examples {
			fmt.Fprintf(&b, "    * %s\n", ex)
		}
	}
	return []Message{
		{Role: RoleSystem, Text: rerankSystemPrompt},
		{Role: RoleUser, Text: b.String()},
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
