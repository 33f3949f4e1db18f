// Package vecmath holds the brute-force similarity ranking shared by the
// in-process chunk repositories.
package vecmath

import (
	"math"
	"sort"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different length or zero magnitude have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Ranker collects scored results and keeps those above a threshold.
type Ranker struct {
	threshold float64
	results   []domain.SearchResult
}

// NewRanker creates a ranker with an exclusive similarity threshold.
func NewRanker(threshold float64) *Ranker {
	return &Ranker{threshold: threshold}
}

// Offer scores a chunk against query and keeps it when it clears the threshold.
func (r *Ranker) Offer(query []float32, c *domain.Chunk) {
	sim := CosineSimilarity(query, c.Embedding)
	if sim <= r.threshold {
		return
	}
	r.results = append(r.results, domain.SearchResult{
		Content:    c.Content,
		Similarity: sim,
		Filename:   c.Filename,
		ChunkID:    c.ChunkID,
		Metadata:   c.Metadata,
	})
}

// Top returns at most k results, most similar first. Ties are broken by
// filename then chunk id so results are stable.
func (r *Ranker) Top(k int) []domain.SearchResult {
	sort.Slice(r.results, func(i, j int) bool {
		a, b := r.results[i], r.results[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.ChunkID < b.ChunkID
	})
	if k > 0 && len(r.results) > k {
		return r.results[:k]
	}
	if r.results == nil {
		return []domain.SearchResult{}
	}
	return r.results
}
