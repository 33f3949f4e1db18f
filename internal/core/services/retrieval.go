package services

import (
	"context"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driving"
	"github.com/custodia-labs/pdfkb/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService applies the configured top_k and threshold policy to
// vector store searches.
type RetrievalService struct {
	store     driving.VectorStore
	topK      int
	threshold float64
	log       *logger.Logger
}

// NewRetrievalService creates a retrieval service with the given defaults.
func NewRetrievalService(store driving.VectorStore, topK int, threshold float64, log *logger.Logger) *RetrievalService {
	if topK <= 0 {
		topK = DefaultVectorStoreConfig().TopK
	}
	return &RetrievalService{
		store:     store,
		topK:      topK,
		threshold: threshold,
		log:       log,
	}
}

// Retrieve searches with the configured defaults.
func (s *RetrievalService) Retrieve(ctx context.Context, query string) ([]domain.SearchResult, error) {
	return s.RetrieveWith(ctx, query, domain.SearchOptions{})
}

// RetrieveWith searches with caller overrides.
func (s *RetrievalService) RetrieveWith(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = s.topK
	}
	if opts.Threshold == nil {
		opts = opts.WithThreshold(s.threshold)
	}

	results, err := s.store.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	s.log.Debug("Retrieved %d results for %q", len(results), query)
	return results, nil
}
