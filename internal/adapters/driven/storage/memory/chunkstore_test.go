package memory

import (
	"testing"

	"github.com/custodia-labs/pdfkb/internal/adapters/driven/storage/storagetest"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
)

func TestChunkStore_Contract(t *testing.T) {
	storagetest.RunChunkRepository(t, func(t *testing.T) driven.ChunkRepository {
		return NewChunkStore()
	})
}
