package driven

import (
	"context"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

// PostProcessor turns an extracted document into ordered chunks.
type PostProcessor interface {
	// Name returns the processor name for logging.
	Name() string

	// Process splits the document text into chunks with ids 0..N-1.
	// Empty text produces no chunks.
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
