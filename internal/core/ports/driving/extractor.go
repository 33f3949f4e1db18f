package driving

import (
	"context"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

// TextExtractor turns a PDF file into normalized text with metadata.
type TextExtractor interface {
	// Extract reads path through the configured tiers.
	// Returns domain.ErrInvalidInput for missing, non-PDF or empty files and
	// domain.ErrExtractionFailed when no tier produced text.
	Extract(ctx context.Context, path string) (*domain.Document, error)
}
