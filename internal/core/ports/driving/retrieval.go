package driving

import (
	"context"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

// RetrievalService answers queries for the response generator.
type RetrievalService interface {
	// Retrieve searches with the configured top_k and threshold.
	Retrieve(ctx context.Context, query string) ([]domain.SearchResult, error)

	// RetrieveWith searches with caller overrides; zero fields use defaults.
	RetrieveWith(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
