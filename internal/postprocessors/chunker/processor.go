// Package chunker splits document text into overlapping, word-aligned chunks.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Processor splits document content into chunks of at most chunkSize
// characters, sharing up to overlap characters with the previous chunk.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a chunker. It requires chunkSize > overlap >= 0.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfig, p.chunkSize)
	}
	if p.overlap < 0 || p.overlap >= p.chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", domain.ErrInvalidConfig, p.overlap, p.chunkSize)
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured maximum chunk length.
func (p *Processor) ChunkSize() int { return p.chunkSize }

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int { return p.overlap }

// Split divides text into chunks. Lengths are counted in characters (runes).
//
// Text no longer than the chunk size is returned whole. Otherwise a window
// of chunkSize slides over the text; a window whose right edge falls inside
// the text is retracted to the last whitespace after its start, so words are
// not cut. Each window is trimmed and kept if non-empty, and the next window
// starts overlap characters before the previous (unclamped) end. The scan
// stops once that start reaches the end of the text, so a short trailing
// chunk repeating the tail of its predecessor can occur.
func (p *Processor) Split(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n <= p.chunkSize {
		return []string{text}
	}

	chunks := make([]string, 0, n/(p.chunkSize-p.overlap)+1)
	start := 0
	for start < n {
		end := start + p.chunkSize
		if end < n {
			if ws := lastSpace(runes, start, end); ws > start {
				end = ws
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:min(end, n)])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - p.overlap
		if next <= start {
			// A whitespace retraction inside the overlap would stall the scan.
			next = end
		}
		start = next
	}

	return chunks
}

// Process splits the document text and attaches ids and metadata.
func (p *Processor) Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	texts := p.Split(doc.Text)
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			Filename: doc.Filename,
			FileHash: doc.Metadata.FileHash,
			ChunkID:  i,
			Key:      domain.ChunkKey(doc.Metadata.FileHash, i),
			Content:  text,
			Metadata: domain.ChunkMetadata{
				ExtractionMetadata: doc.Metadata,
				ChunkIndex:         i,
				TotalChunks:        len(texts),
			},
		})
	}

	return chunks, nil
}

// lastSpace returns the index of the last whitespace rune in runes[from:to],
// or -1.
func lastSpace(runes []rune, from, to int) int {
	for i := to - 1; i >= from; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}
