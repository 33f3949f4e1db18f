package driven

import (
	"context"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

// ChunkRepository persists embedded chunks and answers similarity queries.
// Rows are keyed by (filename, chunk_id).
type ChunkRepository interface {
	// Initialize provisions tables and indexes. It is idempotent.
	Initialize(ctx context.Context) error

	// Upsert writes chunks in a single transaction, inserting new rows and
	// overwriting content, embedding, metadata and timestamp of existing ones.
	// For every filename in the batch, rows with chunk_id >= TotalChunks
	// are removed so ids stay contiguous.
	Upsert(ctx context.Context, chunks []domain.Chunk) error

	// Update overwrites one existing chunk. Returns domain.ErrNotFound if absent.
	Update(ctx context.Context, chunk domain.Chunk) error

	// Get returns one chunk. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, filename string, chunkID int) (*domain.Chunk, error)

	// Search returns up to k chunks whose cosine similarity to query is
	// strictly greater than threshold, most similar first.
	Search(ctx context.Context, query []float32, k int, threshold float64) ([]domain.SearchResult, error)

	// Delete removes one chunk, or every chunk of filename when chunkID is nil.
	// Returns the number of rows removed.
	Delete(ctx context.Context, filename string, chunkID *int) (int64, error)

	// List returns the chunks of filename ordered by chunk_id.
	List(ctx context.Context, filename string) ([]domain.Chunk, error)

	// DocumentHash returns the stored file hash and chunk count for filename.
	// Returns domain.ErrNotFound if the document is unknown.
	DocumentHash(ctx context.Context, filename string) (string, int, error)

	// Info returns collection statistics.
	Info(ctx context.Context) (domain.CollectionInfo, error)

	// Clear removes every chunk and returns how many were removed.
	Clear(ctx context.Context) (int64, error)

	// Close releases resources.
	Close() error
}
