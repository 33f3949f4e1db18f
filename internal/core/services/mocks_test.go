package services

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
)

// fakeStrategy returns canned output for an extraction tier.
type fakeStrategy struct {
	method domain.ProcessingMethod
	text   string
	pages  int
	err    error

	mu    sync.Mutex
	calls int
}

func (f *fakeStrategy) Method() domain.ProcessingMethod { return f.method }

func (f *fakeStrategy) Extract(_ context.Context, _ string) (driven.ExtractionOutput, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return driven.ExtractionOutput{}, f.err
	}
	return driven.ExtractionOutput{Text: f.text, Pages: f.pages}, nil
}

func (f *fakeStrategy) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// bagEmbedder hashes lowercase words into a fixed-size, unit-length vector,
// so texts sharing vocabulary have high cosine similarity.
type bagEmbedder struct {
	dims int

	mu      sync.Mutex
	failOn  string
	failAll error
	batches int
}

func newBagEmbedder() *bagEmbedder { return &bagEmbedder{dims: 64} }

func (b *bagEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (b *bagEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches++
	if b.failAll != nil {
		return nil, b.failAll
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if b.failOn != "" && strings.Contains(t, b.failOn) {
			return nil, errors.New("provider rejected input")
		}
		out[i] = bagVector(t, b.dims)
	}
	return out, nil
}

func (b *bagEmbedder) Dimensions() int              { return b.dims }
func (b *bagEmbedder) ModelName() string            { return "bag-of-words" }
func (b *bagEmbedder) Ping(_ context.Context) error { return nil }
func (b *bagEmbedder) Close() error                 { return nil }

func bagVector(text string, dims int) []float32 {
	v := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dims)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// writeFile creates a file under dir and returns its path.
func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
