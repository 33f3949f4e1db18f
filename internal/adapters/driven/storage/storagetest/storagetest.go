// Package storagetest provides a behavioural test suite that every
// driven.ChunkRepository implementation must pass.
package storagetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
)

// Dimensions is the embedding size used by the suite's chunks.
const Dimensions = 3

// Factory returns a fresh, empty repository. It is called once per subtest.
type Factory func(t *testing.T) driven.ChunkRepository

// Doc builds n chunks for filename with the given hash. Chunk i has the
// embedding vecs[i%len(vecs)].
func Doc(filename, hash string, n int, vecs ...[]float32) []domain.Chunk {
	if len(vecs) == 0 {
		vecs = [][]float32{{1, 0, 0}}
	}
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			Filename:  filename,
			FileHash:  hash,
			ChunkID:   i,
			Key:       domain.ChunkKey(hash, i),
			Content:   fmt.Sprintf("%s chunk %d", filename, i),
			Embedding: vecs[i%len(vecs)],
			Metadata: domain.ChunkMetadata{
				ExtractionMetadata: domain.ExtractionMetadata{
					FilePath: "/docs/" + filename,
					FileSize: 1024,
					FileHash: hash,
					Method:   domain.MethodNative,
					Pages:    2,
				},
				ChunkIndex:  i,
				TotalChunks: n,
			},
		}
	}
	return chunks
}

// RunChunkRepository runs the suite against repositories from newRepo.
func RunChunkRepository(t *testing.T, newRepo Factory) {
	ctx := context.Background()

	setup := func(t *testing.T) driven.ChunkRepository {
		t.Helper()
		repo := newRepo(t)
		require.NoError(t, repo.Initialize(ctx))
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	}

	t.Run("initialize is idempotent", func(t *testing.T) {
		repo := setup(t)
		require.NoError(t, repo.Initialize(ctx))
	})

	t.Run("upsert and list round trip", func(t *testing.T) {
		repo := setup(t)
		chunks := Doc("a.pdf", "hash-a", 3)
		chunks[1].Metadata.Extra = map[string]string{"model": "test"}
		require.NoError(t, repo.Upsert(ctx, chunks))

		got, err := repo.List(ctx, "a.pdf")
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, c := range got {
			assert.Equal(t, i, c.ChunkID)
			assert.Equal(t, chunks[i].Content, c.Content)
			assert.Equal(t, "hash-a", c.FileHash)
			assert.Equal(t, domain.ChunkKey("hash-a", i), c.Key)
			assert.Equal(t, 3, c.Metadata.TotalChunks)
			assert.Equal(t, domain.MethodNative, c.Metadata.Method)
			assert.Equal(t, int64(1024), c.Metadata.FileSize)
			assert.InDeltaSlice(t, chunks[i].Embedding, c.Embedding, 1e-6)
			assert.False(t, c.CreatedAt.IsZero())
		}
		assert.Equal(t, "test", got[1].Metadata.Extra["model"])

		one, err := repo.Get(ctx, "a.pdf", 2)
		require.NoError(t, err)
		assert.Equal(t, "a.pdf chunk 2", one.Content)
	})

	t.Run("list of unknown document is empty", func(t *testing.T) {
		repo := setup(t)
		got, err := repo.List(ctx, "missing.pdf")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("upsert is idempotent", func(t *testing.T) {
		repo := setup(t)
		require.NoError(t, repo.Upsert(ctx, Doc("a.pdf", "h", 4)))
		before, err := repo.Info(ctx)
		require.NoError(t, err)

		require.NoError(t, repo.Upsert(ctx, Doc("a.pdf", "h", 4)))
		after, err := repo.Info(ctx)
		require.NoError(t, err)

		assert.Equal(t, before, after)
		assert.Equal(t, 4, after.TotalChunks)
		assert.Equal(t, 1, after.TotalDocuments)
	})

	t.Run("upsert overwrites in place", func(t *testing.T) {
		repo := setup(t)
		require.NoError(t, repo.Upsert(ctx, Doc("a.pdf", "old", 2)))

		changed := Doc("a.pdf", "new", 2, []float32{0, 1, 0})
		changed[0].Content = "rewritten"
		require.NoError(t, repo.Upsert(ctx, changed))

		got, err := repo.List(ctx, "a.pdf")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "rewritten", got[0].Content)
		assert.Equal(t, "new", got[0].FileHash)
		assert.InDeltaSlice(t, []float32{0, 1, 0}, got[0].Embedding, 1e-6)
	})

	t.Run("upsert prunes stale trailing chunks", func(t *testing.T) {
		repo := setup(t)
		require.NoError(t, repo.Upsert(ctx, Doc("a.pdf", "v1", 5)))
		require.NoError(t, repo.Upsert(ctx, Doc("b.pdf", "b", 2)))
		require.NoError(t, repo.Upsert(ctx, Doc("a.pdf", "v2", 2)))

		got, err := repo.List(ctx, "a.pdf")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 1, got[len(got)-1].ChunkID)

		info, err := repo.Info(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, info.TotalChunks)
	})

	t.Run("upsert never prunes the rows it writes", func(t *testing.T) {
		repo := setup(t)
		require.NoError(t, repo.Upsert(ctx, Doc("a.pdf", "v1", 4)))

		undeclared := Doc("a.pdf", "v2", 2)
		for i := range undeclared {
			undeclared[i].Metadata.TotalChunks = 0
		}
		require.NoError(t, repo.Upsert(ctx, undeclared))
		got, err := repo.List(ctx, "a.pdf")
		require.NoError(t, err)
		assert.Len(t, got, 4, "chunks without a declared total leave the document as is")

		short := Doc("b.pdf", "b", 3)
		for i := range short {
			short[i].Metadata.TotalChunks = 1
		}
		require.NoError(t, repo.Upsert(ctx, short))
		got, err = repo.List(ctx, "b.pdf")
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("search ranks filters and limits", func(t *testing.T) {
		repo := setup(t)
		require.NoError(t, repo.Upsert(ctx, Doc("near.pdf", "n", 2, []float32{1, 0, 0}, []float32{0.9, 0.1, 0})))
		require.NoError(t, repo.Upsert(ctx, Doc("mid.pdf", "m", 1, []float32{0.8, 0.6, 0})))
		require.NoError(t, repo.Upsert(ctx, Doc("far.pdf", "f", 1, []float32{0, 0, 1})))

		results, err := repo.Search(ctx, []float32{1, 0, 0}, 10, 0.5)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "near.pdf", results[0].Filename)
		assert.Equal(t, 0, results[0].ChunkID)
		assert.InDelta(t, 1.0, results[0].Similarity, 1e-5)
		assert.Equal(t, "near.pdf", results[1].Filename)
		assert.Equal(t, "mid.pdf", results[2].Filename)
		assert.InDelta(t, 0.8, results[2].Similarity, 1e-5)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
		}
		assert.Equal(t, "mid.pdf chunk 0", results[2].Content)

		top, err := repo.Search(ctx, []float32{1, 0, 0}, 1, 0.5)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, "near.pdf", top[0].Filename)
	})

	t.Run("search threshold is exclusive", func(t *testing.T) {
		repo := setup(t)
		require.NoError(t, repo.Upsert(ctx, Doc("mid.pdf", "m", 1, []float32{0.8, 0.6, 0})))

		results, err := repo.Search(ctx, []float32{1, 0, 0}, 5, 0.9)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("search on empty collection", func(t *testing.T) {
		repo := setup(t)
		results, err := repo.Search(ctx, []float32{1, 0, 0}, 5, 0)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("update", func(t *testing.T) {
		repo := setup(t)
		require.NoError(t, repo.Upsert(ctx, Doc("a.pdf", "h", 2)))

		c, err := repo.Get(ctx, "a.pdf", 1)
		require.NoError(t, err)
		c.Content = "edited"
		c.Embedding = []float32{0, 0, 1}
		c.Metadata.Extra = map[string]string{"edited": "yes"}
		require.NoError(t, repo.Update(ctx, *c))

		got, err := repo.Get(ctx, "a.pdf", 1)
		require.NoError(t, err)
		assert.Equal(t, "edited", got.Content)
		assert.Equal(t, "yes", got.Metadata.Extra["edited"])
		assert.InDeltaSlice(t, []float32{0, 0, 1}, got.Embedding, 1e-6)

		missing := *c
		missing.ChunkID = 9
		assert.ErrorIs(t, repo.Update(ctx, missing), domain.ErrNotFound)
		missing.Filename = "nope.pdf"
		assert.ErrorIs(t, repo.Update(ctx, missing), domain.ErrNotFound)
	})

	t.Run("get missing", func(t *testing.T) {
		repo := setup(t)
		_, err := repo.Get(ctx, "a.pdf", 0)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete single chunk and document", func(t *testing.T) {
		repo := setup(t)
		require.NoError(t, repo.Upsert(ctx, Doc("a.pdf", "a", 3)))
		require.NoError(t, repo.Upsert(ctx, Doc("b.pdf", "b", 1)))

		one := 1
		n, err := repo.Delete(ctx, "a.pdf", &one)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = repo.Delete(ctx, "a.pdf", &one)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = repo.Delete(ctx, "a.pdf", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		info, err := repo.Info(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b.pdf"}, info.Filenames)
		assert.NotContains(t, info.Filenames, "a.pdf")

		n, err = repo.Delete(ctx, "missing.pdf", nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("document hash", func(t *testing.T) {
		repo := setup(t)
		_, _, err := repo.DocumentHash(ctx, "a.pdf")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		require.NoError(t, repo.Upsert(ctx, Doc("a.pdf", "abc", 3)))
		hash, n, err := repo.DocumentHash(ctx, "a.pdf")
		require.NoError(t, err)
		assert.Equal(t, "abc", hash)
		assert.Equal(t, 3, n)
	})

	t.Run("info sorts filenames", func(t *testing.T) {
		repo := setup(t)
		info, err := repo.Info(ctx)
		require.NoError(t, err)
		assert.Zero(t, info.TotalChunks)
		assert.Empty(t, info.Filenames)

		for _, name := range []string{"c.pdf", "a.pdf", "b.pdf"} {
			require.NoError(t, repo.Upsert(ctx, Doc(name, name, 2)))
		}
		info, err = repo.Info(ctx)
		require.NoError(t, err)
		assert.Equal(t, 6, info.TotalChunks)
		assert.Equal(t, 3, info.TotalDocuments)
		assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, info.Filenames)
	})

	t.Run("clear", func(t *testing.T) {
		repo := setup(t)
		require.NoError(t, repo.Upsert(ctx, Doc("a.pdf", "a", 2)))
		require.NoError(t, repo.Upsert(ctx, Doc("b.pdf", "b", 3)))

		n, err := repo.Clear(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		info, err := repo.Info(ctx)
		require.NoError(t, err)
		assert.Zero(t, info.TotalChunks)
	})
}
