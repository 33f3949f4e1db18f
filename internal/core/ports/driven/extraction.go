package driven

import (
	"context"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

// ExtractionStrategy is one tier of PDF text extraction.
// Strategies are tried in order until one yields enough text.
type ExtractionStrategy interface {
	// Method names the tier, recorded as the processing method.
	Method() domain.ProcessingMethod

	// Extract returns the raw text of the file and its page count.
	// Page-level failures are absorbed; an error means the whole tier failed.
	Extract(ctx context.Context, path string) (ExtractionOutput, error)
}

// ExtractionOutput is the raw result of one strategy.
type ExtractionOutput struct {
	// Text is the concatenated page text, not yet normalized.
	Text string

	// Pages is the number of pages in the document.
	Pages int

	// FailedPages lists 1-based pages that produced an error.
	FailedPages []int
}
