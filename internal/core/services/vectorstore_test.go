package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfkb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/logger"
)

func newTestVectorStore(t *testing.T, cfg VectorStoreConfig) (*VectorStoreService, *memory.ChunkStore, *bagEmbedder) {
	t.Helper()
	repo := memory.NewChunkStore()
	emb := newBagEmbedder()
	store := NewVectorStoreService(repo, emb, cfg, logger.Nop())
	require.NoError(t, store.Initialize(context.Background()))
	return store, repo, emb
}

// docChunks builds chunks for filename with the given contents.
func docChunks(filename, hash string, contents ...string) []domain.Chunk {
	chunks := make([]domain.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = domain.Chunk{
			Filename: filename,
			FileHash: hash,
			ChunkID:  i,
			Key:      domain.ChunkKey(hash, i),
			Content:  c,
			Metadata: domain.ChunkMetadata{
				ExtractionMetadata: domain.ExtractionMetadata{FileHash: hash, Method: domain.MethodNative},
				ChunkIndex:         i,
				TotalChunks:        len(contents),
			},
		}
	}
	return chunks
}

func TestVectorStore_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestVectorStore(t, VectorStoreConfig{})

	require.NoError(t, store.Add(ctx, docChunks("garden.pdf", "g",
		"tomato plants need full sun and regular watering",
		"prune basil often to keep it bushy")))
	require.NoError(t, store.Add(ctx, docChunks("tax.pdf", "t",
		"quarterly estimated tax payments are due in april")))

	results, err := store.Search(ctx, "watering tomato plants in sun", domain.SearchOptions{}.WithThreshold(0.1))
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "garden.pdf", results[0].Filename)
	assert.Equal(t, 0, results[0].ChunkID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
	for _, r := range results {
		assert.Greater(t, r.Similarity, 0.1)
	}
}

func TestVectorStore_SearchDefaults(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestVectorStore(t, VectorStoreConfig{TopK: 2, Threshold: -1})

	var contents []string
	for i := 0; i < 6; i++ {
		contents = append(contents, fmt.Sprintf("shared words chunk number %d", i))
	}
	require.NoError(t, store.Add(ctx, docChunks("a.pdf", "a", contents...)))

	results, err := store.Search(ctx, "shared words", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, results, 2, "default top_k applies")

	results, err = store.Search(ctx, "shared words", domain.SearchOptions{TopK: 4})
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestVectorStore_SearchEdgeCases(t *testing.T) {
	ctx := context.Background()
	store, _, emb := newTestVectorStore(t, VectorStoreConfig{})

	_, err := store.Search(ctx, "   ", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.Search(ctx, "q", domain.SearchOptions{}.WithThreshold(2))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	results, err := store.Search(ctx, "nothing stored yet", domain.SearchOptions{})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	emb.failAll = errors.New("boom")
	_, err = store.Search(ctx, "query", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrProviderFailure)
}

func TestVectorStore_AddIsFailFast(t *testing.T) {
	ctx := context.Background()
	store, repo, emb := newTestVectorStore(t, VectorStoreConfig{BatchSize: 2})

	require.NoError(t, store.Add(ctx, docChunks("a.pdf", "v1", "alpha one", "alpha two", "alpha three")))
	before, err := repo.List(ctx, "a.pdf")
	require.NoError(t, err)

	// The failing text is in the second batch; nothing from the first batch may land.
	emb.failOn = "poison"
	err = store.Add(ctx, docChunks("a.pdf", "v2", "beta one", "beta two", "poison three"))
	require.ErrorIs(t, err, domain.ErrProviderFailure)

	after, err := repo.List(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	info, err := store.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, info.TotalChunks)
}

func TestVectorStore_AddBatches(t *testing.T) {
	ctx := context.Background()
	store, _, emb := newTestVectorStore(t, VectorStoreConfig{BatchSize: 2})

	require.NoError(t, store.Add(ctx, docChunks("a.pdf", "a", "one", "two", "three", "four", "five")))
	assert.Equal(t, 3, emb.batches)
}

func TestVectorStore_AddRejectsEmptyContent(t *testing.T) {
	store, _, _ := newTestVectorStore(t, VectorStoreConfig{})
	err := store.Add(context.Background(), docChunks("a.pdf", "a", "fine", "  "))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NoError(t, store.Add(context.Background(), nil))
}

func TestVectorStore_AddChecksChunkIDs(t *testing.T) {
	ctx := context.Background()
	store, repo, _ := newTestVectorStore(t, VectorStoreConfig{})

	tooFar := docChunks("a.pdf", "a", "alpha", "beta")
	tooFar[1].Metadata.TotalChunks = 1
	assert.ErrorIs(t, store.Add(ctx, tooFar), domain.ErrInvalidInput)

	negative := docChunks("a.pdf", "a", "alpha")
	negative[0].ChunkID = -1
	assert.ErrorIs(t, store.Add(ctx, negative), domain.ErrInvalidInput)

	info, err := repo.Info(ctx)
	require.NoError(t, err)
	assert.Zero(t, info.TotalChunks)
}

func TestVectorStore_AddWithoutTotalsKeepsChunks(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestVectorStore(t, VectorStoreConfig{})

	chunks := []domain.Chunk{
		{Filename: "a.pdf", FileHash: "h", ChunkID: 0, Content: "alpha beta"},
		{Filename: "a.pdf", FileHash: "h", ChunkID: 1, Content: "gamma delta"},
	}
	require.NoError(t, store.Add(ctx, chunks))

	info, err := store.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, info.TotalChunks)
	assert.Equal(t, 1, info.TotalDocuments)
}

// wrongDims returns vectors of varying length.
type wrongDims struct{ bagEmbedder }

func (w *wrongDims) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, 3+i)
		out[i][0] = 1
	}
	return out, nil
}

func (w *wrongDims) Dimensions() int { return 0 }

func TestVectorStore_DimensionMismatch(t *testing.T) {
	repo := memory.NewChunkStore()
	store := NewVectorStoreService(repo, &wrongDims{}, VectorStoreConfig{}, logger.Nop())

	err := store.Add(context.Background(), docChunks("a.pdf", "a", "one", "two"))
	assert.ErrorIs(t, err, domain.ErrProviderFailure)
	info, _ := repo.Info(context.Background())
	assert.Zero(t, info.TotalChunks)
}

// slowEmbedder blocks until its context is done.
type slowEmbedder struct{ bagEmbedder }

func (s *slowEmbedder) EmbedBatch(ctx context.Context, _ []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestVectorStore_ProviderTimeout(t *testing.T) {
	store := NewVectorStoreService(memory.NewChunkStore(), &slowEmbedder{},
		VectorStoreConfig{Timeout: 10 * time.Millisecond}, logger.Nop())

	err := store.Add(context.Background(), docChunks("a.pdf", "a", "one"))
	assert.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestVectorStore_CallerCancellation(t *testing.T) {
	store := NewVectorStoreService(memory.NewChunkStore(), &slowEmbedder{}, VectorStoreConfig{}, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Add(ctx, docChunks("a.pdf", "a", "one"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrProviderFailure)
}

func TestVectorStore_NoEmbedder(t *testing.T) {
	store := NewVectorStoreService(memory.NewChunkStore(), nil, VectorStoreConfig{}, logger.Nop())
	_, err := store.Search(context.Background(), "q", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestVectorStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestVectorStore(t, VectorStoreConfig{})
	require.NoError(t, store.Add(ctx, docChunks("a.pdf", "a", "one", "two", "three")))

	one := 1
	require.NoError(t, store.Delete(ctx, "a.pdf", &one))
	assert.ErrorIs(t, store.Delete(ctx, "a.pdf", &one), domain.ErrNotFound)

	chunks, err := store.Chunks(ctx, "a.pdf")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].ChunkID)
	assert.Equal(t, 2, chunks[1].ChunkID)

	require.NoError(t, store.Delete(ctx, "a.pdf", nil))
	assert.ErrorIs(t, store.Delete(ctx, "a.pdf", nil), domain.ErrNotFound)

	info, err := store.Info(ctx)
	require.NoError(t, err)
	assert.NotContains(t, info.Filenames, "a.pdf")
}

func TestVectorStore_Update(t *testing.T) {
	ctx := context.Background()
	store, repo, _ := newTestVectorStore(t, VectorStoreConfig{})
	require.NoError(t, store.Add(ctx, docChunks("a.pdf", "a", "cats purr", "dogs bark")))

	require.NoError(t, store.Update(ctx, "a.pdf", 1, "parrots talk loudly", nil))

	got, err := repo.Get(ctx, "a.pdf", 1)
	require.NoError(t, err)
	assert.Equal(t, "parrots talk loudly", got.Content)
	assert.Equal(t, 2, got.Metadata.TotalChunks, "nil metadata keeps the stored metadata")
	assert.InDeltaSlice(t, bagVector("parrots talk loudly", 64), got.Embedding, 1e-6)

	meta := got.Metadata
	meta.Extra = map[string]string{"reviewed": "yes"}
	require.NoError(t, store.Update(ctx, "a.pdf", 1, "parrots talk", &meta))
	got, err = repo.Get(ctx, "a.pdf", 1)
	require.NoError(t, err)
	assert.Equal(t, "yes", got.Metadata.Extra["reviewed"])

	results, err := store.Search(ctx, "parrots talk", domain.SearchOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ChunkID)

	assert.ErrorIs(t, store.Update(ctx, "a.pdf", 7, "x", nil), domain.ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, "missing.pdf", 0, "x", nil), domain.ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, "a.pdf", 0, "", nil), domain.ErrInvalidInput)
}

func TestVectorStore_ClearAndHash(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestVectorStore(t, VectorStoreConfig{})
	require.NoError(t, store.Add(ctx, docChunks("a.pdf", "hash-a", "one", "two")))

	hash, err := store.DocumentHash(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "hash-a", hash)

	n, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = store.DocumentHash(ctx, "a.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreError(t *testing.T) {
	plain := errors.New("disk full")
	assert.ErrorIs(t, storeError("op", plain), domain.ErrStoreFailure)
	assert.ErrorIs(t, storeError("op", plain), plain)

	notFound := fmt.Errorf("%w: x", domain.ErrNotFound)
	assert.Equal(t, notFound, storeError("op", notFound))
	assert.NotErrorIs(t, storeError("op", notFound), domain.ErrStoreFailure)
}
