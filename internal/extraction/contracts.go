package extraction

import (
	"context"

	"github.com/joseph-ayodele/procurement-intake/internal/entity"
	"github.com/joseph-ayodele/procurement-intake/internal/pdftext"
)

// TextExtractor reads the PDF's text layer with local tools only.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (entity.ExtractedText, error)
}

// PageRenderer rasterizes selected pages for the recovery pass.
type PageRenderer interface {
	Render(ctx context.Context, data []byte, sel pdftext.PageSelection) ([]entity.PageImage, error)
}

var (
	_ TextExtractor = (*pdftext.Extractor)(nil)
	_ PageRenderer  = (*pdftext.Renderer)(nil)
)
