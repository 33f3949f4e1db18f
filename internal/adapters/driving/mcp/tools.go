package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query     string   `json:"query" jsonschema:"natural language question or keywords"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"maximum number of passages to return (default from settings)"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity, exclusive (default from settings)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput is one retrieved passage.
type SearchResultOutput struct {
	Filename   string  `json:"filename"`
	ChunkID    int     `json:"chunk_id"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
	Method     string  `json:"processing_method,omitempty"`
	Pages      int     `json:"pages,omitempty"`
}

// CollectionInfoInput is the (empty) input schema for collection_info.
type CollectionInfoInput struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search over the ingested PDF documents",
	}, s.handleSearch)

	if s.ports.Store != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "collection_info",
			Description: "Number of stored chunks and the list of ingested documents",
		}, s.handleCollectionInfo)
	}
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.SearchOptions{TopK: input.TopK, Threshold: input.Threshold}
	results, err := s.ports.Retrieval.RetrieveWith(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	s.log.Debug("mcp search %q: %d results", input.Query, len(results))

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		output.Results[i] = SearchResultOutput{
			Filename:   r.Filename,
			ChunkID:    r.ChunkID,
			Similarity: r.Similarity,
			Content:    r.Content,
			Method:     r.Metadata.Method.String(),
			Pages:      r.Metadata.Pages,
		}
	}

	return nil, output, nil
}

func (s *Server) handleCollectionInfo(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ CollectionInfoInput,
) (*mcp.CallToolResult, domain.CollectionInfo, error) {
	if s.ports.Store == nil {
		return nil, domain.CollectionInfo{}, errors.New("collection info is not available")
	}
	info, err := s.ports.Store.Info(ctx)
	if err != nil {
		return nil, domain.CollectionInfo{}, err
	}
	return nil, info, nil
}
