package vecmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 0}, []float32{5, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestRanker(t *testing.T) {
	query := []float32{1, 0}
	chunks := []domain.Chunk{
		{Filename: "a.pdf", ChunkID: 0, Embedding: []float32{1, 0}},     // 1.0
		{Filename: "a.pdf", ChunkID: 1, Embedding: []float32{1, 1}},     // 0.707
		{Filename: "b.pdf", ChunkID: 0, Embedding: []float32{0, 1}},     // 0.0
		{Filename: "b.pdf", ChunkID: 1, Embedding: []float32{0.8, 0.6}}, // 0.8
		{Filename: "c.pdf", ChunkID: 0, Embedding: []float32{3, 0}},     // 1.0
	}

	r := NewRanker(0.7)
	for i := range chunks {
		r.Offer(query, &chunks[i])
	}
	top := r.Top(3)

	require.Len(t, top, 3)
	assert.Equal(t, "a.pdf", top[0].Filename)
	assert.Equal(t, "c.pdf", top[1].Filename)
	assert.Equal(t, "b.pdf", top[2].Filename)
	assert.InDelta(t, 0.8, top[2].Similarity, 1e-6)
}

func TestRanker_ThresholdIsExclusive(t *testing.T) {
	r := NewRanker(1)
	r.Offer([]float32{1, 0}, &domain.Chunk{Embedding: []float32{1, 0}})

	top := r.Top(5)
	assert.NotNil(t, top)
	assert.Empty(t, top)
}
