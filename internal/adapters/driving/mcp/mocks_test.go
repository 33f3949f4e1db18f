package mcp

import (
	"context"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	results []domain.SearchResult
	err     error
	query   string
	opts    domain.SearchOptions
}

func (m *mockRetrievalService) Retrieve(ctx context.Context, query string) ([]domain.SearchResult, error) {
	return m.RetrieveWith(ctx, query, domain.SearchOptions{})
}

func (m *mockRetrievalService) RetrieveWith(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.query = query
	m.opts = opts
	return m.results, m.err
}

// mockVectorStore implements the read side of driving.VectorStore.
type mockVectorStore struct {
	driving.VectorStore
	info   domain.CollectionInfo
	chunks map[string][]domain.Chunk
	err    error
}

func (m *mockVectorStore) Info(_ context.Context) (domain.CollectionInfo, error) {
	return m.info, m.err
}

func (m *mockVectorStore) Chunks(_ context.Context, filename string) ([]domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.chunks[filename], nil
}
