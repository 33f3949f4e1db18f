package driving

import (
	"context"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

// IngestionService loads PDF files into the vector store.
type IngestionService interface {
	// IngestFolder processes every non-empty .pdf file in dir in name order.
	// Per-document failures are recorded in the summary, not returned.
	IngestFolder(ctx context.Context, dir string, opts domain.IngestOptions) (*domain.IngestSummary, error)

	// IngestFile processes a single file and returns the number of chunks stored.
	IngestFile(ctx context.Context, path string, opts domain.IngestOptions) (int, error)

	// RemoveFile deletes every chunk of the document at path.
	RemoveFile(ctx context.Context, path string) error
}
