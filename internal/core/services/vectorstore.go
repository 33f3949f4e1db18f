package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driving"
	"github.com/custodia-labs/pdfkb/internal/logger"
)

// Ensure VectorStoreService implements the interface.
var _ driving.VectorStore = (*VectorStoreService)(nil)

// VectorStoreConfig holds embedding and search defaults.
type VectorStoreConfig struct {
	// BatchSize is the number of texts per EmbedBatch call.
	BatchSize int

	// Timeout bounds each embedding call.
	Timeout time.Duration

	// TopK is the default result limit.
	TopK int

	// Threshold is the default exclusive similarity bound.
	Threshold float64
}

// DefaultVectorStoreConfig returns the stock settings.
func DefaultVectorStoreConfig() VectorStoreConfig {
	return VectorStoreConfig{
		BatchSize: 64,
		Timeout:   30 * time.Second,
		TopK:      5,
		Threshold: 0.7,
	}
}

// VectorStoreService embeds chunks and delegates persistence to a ChunkRepository.
type VectorStoreService struct {
	repo     driven.ChunkRepository
	embedder driven.EmbeddingService
	cfg      VectorStoreConfig
	log      *logger.Logger
}

// NewVectorStoreService creates a vector store. Zero BatchSize, Timeout and
// TopK take defaults; Threshold is used as given.
func NewVectorStoreService(
	repo driven.ChunkRepository,
	embedder driven.EmbeddingService,
	cfg VectorStoreConfig,
	log *logger.Logger,
) *VectorStoreService {
	def := DefaultVectorStoreConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	return &VectorStoreService{
		repo:     repo,
		embedder: embedder,
		cfg:      cfg,
		log:      log,
	}
}

// Initialize provisions the repository.
func (s *VectorStoreService) Initialize(ctx context.Context) error {
	if err := s.repo.Initialize(ctx); err != nil {
		return storeError("initializing store", err)
	}
	return nil
}

// Add embeds every chunk before writing any of them.
func (s *VectorStoreService) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		if c.Filename == "" || strings.TrimSpace(c.Content) == "" {
			return fmt.Errorf("%w: chunk %d has no filename or content", domain.ErrInvalidInput, i)
		}
		if c.ChunkID < 0 || (c.Metadata.TotalChunks > 0 && c.ChunkID >= c.Metadata.TotalChunks) {
			return fmt.Errorf("%w: chunk %s/%d outside 0..%d", domain.ErrInvalidInput,
				c.Filename, c.ChunkID, c.Metadata.TotalChunks-1)
		}
		texts[i] = c.Content
	}

	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return err
	}

	embedded := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = vectors[i]
		embedded[i] = c
	}

	if err := s.repo.Upsert(ctx, embedded); err != nil {
		return storeError("upserting chunks", err)
	}
	s.log.Debug("Stored %d chunks", len(embedded))
	return nil
}

// Search embeds query and returns ranked chunks.
func (s *VectorStoreService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	threshold := s.cfg.Threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if threshold < -1 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v outside [-1, 1]", domain.ErrInvalidInput, threshold)
	}
	s.log.Debug("Search: top_k=%d threshold=%.3f query=%q", topK, threshold, query)

	vectors, err := s.embedAll(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	results, err := s.repo.Search(ctx, vectors[0], topK, threshold)
	if err != nil {
		return nil, storeError("searching chunks", err)
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	s.log.Debug("Search returned %d results", len(results))
	return results, nil
}

// Info returns collection statistics.
func (s *VectorStoreService) Info(ctx context.Context) (domain.CollectionInfo, error) {
	info, err := s.repo.Info(ctx)
	if err != nil {
		return info, storeError("reading collection info", err)
	}
	return info, nil
}

// Delete removes one chunk or a whole document.
func (s *VectorStoreService) Delete(ctx context.Context, filename string, chunkID *int) error {
	n, err := s.repo.Delete(ctx, filename, chunkID)
	if err != nil {
		return storeError("deleting chunks", err)
	}
	if n == 0 {
		if chunkID != nil {
			return fmt.Errorf("%w: chunk %s/%d", domain.ErrNotFound, filename, *chunkID)
		}
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, filename)
	}
	s.log.Info("Deleted %d chunks from %s", n, filename)
	return nil
}

// Update re-embeds content and overwrites an existing chunk. A nil
// metadata keeps the stored metadata.
func (s *VectorStoreService) Update(
	ctx context.Context, filename string, chunkID int, content string, metadata *domain.ChunkMetadata,
) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: empty content", domain.ErrInvalidInput)
	}

	existing, err := s.repo.Get(ctx, filename, chunkID)
	if err != nil {
		return storeError("reading chunk", err)
	}

	vectors, err := s.embedAll(ctx, []string{content})
	if err != nil {
		return err
	}

	existing.Content = content
	existing.Embedding = vectors[0]
	if metadata != nil {
		existing.Metadata = *metadata
	}
	if err := s.repo.Update(ctx, *existing); err != nil {
		return storeError("updating chunk", err)
	}
	return nil
}

// Chunks lists a document's chunks in order.
func (s *VectorStoreService) Chunks(ctx context.Context, filename string) ([]domain.Chunk, error) {
	chunks, err := s.repo.List(ctx, filename)
	if err != nil {
		return nil, storeError("listing chunks", err)
	}
	return chunks, nil
}

// Clear removes every chunk.
func (s *VectorStoreService) Clear(ctx context.Context) (int64, error) {
	n, err := s.repo.Clear(ctx)
	if err != nil {
		return 0, storeError("clearing chunks", err)
	}
	s.log.Info("Cleared %d chunks", n)
	return n, nil
}

// DocumentHash returns the fingerprint stored with a document's chunks.
func (s *VectorStoreService) DocumentHash(ctx context.Context, filename string) (string, error) {
	hash, _, err := s.repo.DocumentHash(ctx, filename)
	if err != nil {
		return "", storeError("reading document hash", err)
	}
	return hash, nil
}

// embedAll embeds texts in batches, each under its own timeout, and checks
// that every vector has the same dimension.
func (s *VectorStoreService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	dims := s.embedder.Dimensions()
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(texts))

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		vectors, err := s.embedder.EmbedBatch(callCtx, texts[start:end])
		cancel()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: embedding batch %d-%d: %w", domain.ErrProviderFailure, start, end, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
				domain.ErrProviderFailure, end-start, len(vectors))
		}
		for _, v := range vectors {
			if dims == 0 {
				dims = len(v)
			}
			if len(v) == 0 || len(v) != dims {
				return nil, fmt.Errorf("%w: embedding has %d dimensions, expected %d",
					domain.ErrProviderFailure, len(v), dims)
			}
			out = append(out, v)
		}
		s.log.Debug("Embedded %d/%d texts", end, len(texts))
	}
	return out, nil
}

// storeError tags unclassified repository errors as store failures.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrStoreFailure),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %s: %w", domain.ErrStoreFailure, op, err)
	}
}
