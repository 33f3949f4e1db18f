package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/pdfkb/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
)

// Ensure ChunkStore implements the interface.
var _ driven.ChunkRepository = (*ChunkStore)(nil)

// ChunkStore is an in-memory implementation of driven.ChunkRepository.
// Chunks are held per filename, indexed by chunk id.
type ChunkStore struct {
	mu   sync.RWMutex
	docs map[string]map[int]domain.Chunk
	now  func() time.Time
}

// NewChunkStore creates a new in-memory chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		docs: make(map[string]map[int]domain.Chunk),
		now:  time.Now,
	}
}

// Initialize is a no-op.
func (s *ChunkStore) Initialize(_ context.Context) error {
	return nil
}

// Upsert stores chunks, replacing existing ids and pruning stale tails.
func (s *ChunkStore) Upsert(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, c := range chunks {
		doc, ok := s.docs[c.Filename]
		if !ok {
			doc = make(map[int]domain.Chunk)
			s.docs[c.Filename] = doc
		}
		c.CreatedAt = now
		doc[c.ChunkID] = copyChunk(c)
	}
	for filename, total := range domain.PruneBounds(chunks) {
		for id := range s.docs[filename] {
			if id >= total {
				delete(s.docs[filename], id)
			}
		}
	}
	return nil
}

// Update overwrites an existing chunk.
func (s *ChunkStore) Update(_ context.Context, chunk domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[chunk.Filename]
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := doc[chunk.ChunkID]; !ok {
		return domain.ErrNotFound
	}
	chunk.CreatedAt = s.now()
	doc[chunk.ChunkID] = copyChunk(chunk)
	return nil
}

// Get returns one chunk.
func (s *ChunkStore) Get(_ context.Context, filename string, chunkID int) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.docs[filename][chunkID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c = copyChunk(c)
	return &c, nil
}

// Search scans every chunk.
func (s *ChunkStore) Search(_ context.Context, query []float32, k int, threshold float64) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := vecmath.NewRanker(threshold)
	for _, doc := range s.docs {
		for _, c := range doc {
			r.Offer(query, &c)
		}
	}
	return r.Top(k), nil
}

// Delete removes one chunk or a whole document.
func (s *ChunkStore) Delete(_ context.Context, filename string, chunkID *int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[filename]
	if !ok {
		return 0, nil
	}
	if chunkID == nil {
		delete(s.docs, filename)
		return int64(len(doc)), nil
	}
	if _, ok := doc[*chunkID]; !ok {
		return 0, nil
	}
	delete(doc, *chunkID)
	if len(doc) == 0 {
		delete(s.docs, filename)
	}
	return 1, nil
}

// List returns a document's chunks ordered by id.
func (s *ChunkStore) List(_ context.Context, filename string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := s.docs[filename]
	chunks := make([]domain.Chunk, 0, len(doc))
	for _, c := range doc {
		chunks = append(chunks, copyChunk(c))
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkID < chunks[j].ChunkID })
	return chunks, nil
}

// DocumentHash returns the hash stored with a document's chunks.
func (s *ChunkStore) DocumentHash(_ context.Context, filename string) (string, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[filename]
	if !ok || len(doc) == 0 {
		return "", 0, domain.ErrNotFound
	}
	for _, c := range doc {
		return c.FileHash, len(doc), nil
	}
	return "", 0, domain.ErrNotFound
}

// Info returns collection statistics.
func (s *ChunkStore) Info(_ context.Context) (domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := domain.CollectionInfo{Filenames: make([]string, 0, len(s.docs))}
	for filename, doc := range s.docs {
		info.TotalChunks += len(doc)
		info.Filenames = append(info.Filenames, filename)
	}
	sort.Strings(info.Filenames)
	info.TotalDocuments = len(info.Filenames)
	return info, nil
}

// Clear removes everything.
func (s *ChunkStore) Clear(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, doc := range s.docs {
		n += int64(len(doc))
	}
	s.docs = make(map[string]map[int]domain.Chunk)
	return n, nil
}

// Close is a no-op.
func (s *ChunkStore) Close() error {
	return nil
}

func copyChunk(c domain.Chunk) domain.Chunk {
	if c.Embedding != nil {
		c.Embedding = append([]float32(nil), c.Embedding...)
	}
	if c.Metadata.Extra != nil {
		extra := make(map[string]string, len(c.Metadata.Extra))
		for k, v := range c.Metadata.Extra {
			extra[k] = v
		}
		c.Metadata.Extra = extra
	}
	return c
}
