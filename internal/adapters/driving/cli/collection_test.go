package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

func TestInfoCmd(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	seedChunks(t, env)

	out, err := execute(t, "info")

	require.NoError(t, err)
	assert.Contains(t, out, "Chunks: 3")
	assert.Contains(t, out, "Documents: 2")
	assert.Contains(t, out, "invoice.pdf")
	assert.Contains(t, out, "manual.pdf")
}

func TestInfoCmd_JSONOnEmptyCollection(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "info", "--json")
	require.NoError(t, err)

	var info domain.CollectionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 0, info.TotalChunks)
	assert.NotNil(t, info.Filenames)
	assert.Contains(t, out, `"filenames": []`)
}

func TestChunksCmd(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	seedChunks(t, env)

	out, err := execute(t, "chunks", "invoice.pdf")

	require.NoError(t, err)
	assert.Contains(t, out, "invoice.pdf: 2 chunks (native, 2 pages)")
	assert.Contains(t, out, "#0 invoice total amount due")
	assert.Contains(t, out, "#1 payment terms thirty days")
}

func TestChunksCmd_UnknownDocument(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "chunks", "missing.pdf")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteCmd_WholeDocument(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	seedChunks(t, env)

	out, err := execute(t, "delete", "invoice.pdf")

	require.NoError(t, err)
	assert.Contains(t, out, "Deleted invoice.pdf")
	info, err := env.store.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"manual.pdf"}, info.Filenames)
}

func TestDeleteCmd_SingleChunk(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	seedChunks(t, env)

	out, err := execute(t, "delete", "--chunk", "1", "invoice.pdf")

	require.NoError(t, err)
	assert.Contains(t, out, "Deleted chunk 1 of invoice.pdf")
	chunks, err := env.store.Chunks(context.Background(), "invoice.pdf")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ChunkID)
}

func TestDeleteCmd_Errors(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	seedChunks(t, env)

	_, err := execute(t, "delete", "missing.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	resetFlags(rootCmd)
	_, err = execute(t, "delete", "--chunk", "9", "invoice.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	resetFlags(rootCmd)
	_, err = execute(t, "delete", "--chunk=-1", "invoice.pdf")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateCmd(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	seedChunks(t, env)

	out, err := execute(t, "update", "manual.pdf", "0", "replacement text about shelves")

	require.NoError(t, err)
	assert.Contains(t, out, "Updated chunk 0 of manual.pdf")
	chunks, err := env.store.Chunks(context.Background(), "manual.pdf")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "replacement text about shelves", chunks[0].Content)
	assert.Equal(t, domain.MethodNative, chunks[0].Metadata.Method, "metadata is kept")
}

func TestUpdateCmd_Errors(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	seedChunks(t, env)

	_, err := execute(t, "update", "manual.pdf", "abc", "text")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(t, "update", "manual.pdf", "7", "text")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = execute(t, "update", "manual.pdf", "0", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestClearCmd(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	seedChunks(t, env)

	out, err := execute(t, "clear", "--yes")

	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 3 chunks")
	info, err := env.store.Info(context.Background())
	require.NoError(t, err)
	assert.Zero(t, info.TotalChunks)
}

func TestClearCmd_RequiresConfirmation(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	seedChunks(t, env)

	// go test does not attach a terminal to stdin.
	_, err := execute(t, "clear")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	info, err := env.store.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, info.TotalChunks)
}
