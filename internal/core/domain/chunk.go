package domain

import (
	"fmt"
	"time"
)

// ChunkMetadata is the structured metadata stored alongside each chunk.
type ChunkMetadata struct {
	ExtractionMetadata

	// ChunkIndex is the 0-based position of the chunk in its document.
	ChunkIndex int `json:"chunk_index"`

	// TotalChunks is the number of chunks the document was split into.
	TotalChunks int `json:"total_chunks"`

	// Extra holds provider or caller specific values.
	Extra map[string]string `json:"extra,omitempty"`
}

// Chunk is a bounded segment of a document's text, stored with its embedding.
// The pair (Filename, ChunkID) is unique within a collection.
type Chunk struct {
	// Filename is the source document identifier.
	Filename string

	// FileHash is the content fingerprint of the source document.
	FileHash string

	// ChunkID is the 0-based position within the document.
	ChunkID int

	// Key is the stable identifier "{file_hash}_{index}".
	Key string

	// Content is the trimmed text segment.
	Content string

	// Embedding is the vector representation. Empty until embedded.
	Embedding []float32

	// Metadata is the structured chunk metadata.
	Metadata ChunkMetadata

	// CreatedAt is the time of the last write.
	CreatedAt time.Time
}

// ChunkKey builds the stable chunk identifier for a document hash and index.
func ChunkKey(fileHash string, index int) string {
	return fmt.Sprintf("%s_%d", fileHash, index)
}

// PruneBounds returns, per filename, the chunk id from which stored rows are
// stale after writing chunks. Only documents whose chunks declare a
// TotalChunks are pruned, and never below the highest id in the batch.
func PruneBounds(chunks []Chunk) map[string]int {
	bounds := make(map[string]int)
	declared := make(map[string]bool)
	for _, c := range chunks {
		bounds[c.Filename] = max(bounds[c.Filename], c.Metadata.TotalChunks, c.ChunkID+1)
		if c.Metadata.TotalChunks > 0 {
			declared[c.Filename] = true
		}
	}
	for filename := range bounds {
		if !declared[filename] {
			delete(bounds, filename)
		}
	}
	return bounds
}

// CollectionInfo summarises the stored collection.
type CollectionInfo struct {
	// TotalChunks is the number of stored chunks.
	TotalChunks int `json:"total_chunks"`

	// TotalDocuments is the number of distinct filenames.
	TotalDocuments int `json:"total_documents"`

	// Filenames lists the known documents, sorted.
	Filenames []string `json:"filenames"`
}
