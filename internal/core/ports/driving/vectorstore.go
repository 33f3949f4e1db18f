package driving

import (
	"context"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

// VectorStore stores chunks with embeddings and answers similarity queries.
type VectorStore interface {
	// Initialize provisions storage. Failure is fatal at startup.
	Initialize(ctx context.Context) error

	// Add embeds and upserts chunks. A provider failure aborts the whole
	// batch before anything is written.
	Add(ctx context.Context, chunks []domain.Chunk) error

	// Search embeds query and returns ranked chunks above the threshold.
	// No hits is an empty slice, not an error.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// Info returns collection statistics.
	Info(ctx context.Context) (domain.CollectionInfo, error)

	// Delete removes one chunk, or all chunks of filename when chunkID is nil.
	Delete(ctx context.Context, filename string, chunkID *int) error

	// Update re-embeds and overwrites one existing chunk.
	Update(ctx context.Context, filename string, chunkID int, content string, metadata *domain.ChunkMetadata) error

	// Chunks lists the chunks of a document in order.
	Chunks(ctx context.Context, filename string) ([]domain.Chunk, error)

	// DocumentHash returns the file hash stored with a document's chunks,
	// or domain.ErrNotFound when the document is unknown.
	DocumentHash(ctx context.Context, filename string) (string, error)

	// Clear removes every chunk.
	Clear(ctx context.Context) (int64, error)
}
