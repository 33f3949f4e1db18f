package mcp

import (
	"github.com/custodia-labs/pdfkb/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server needs.
type Ports struct {
	// Retrieval answers search queries with the configured defaults.
	Retrieval driving.RetrievalService

	// Store exposes collection statistics and stored chunks. Optional.
	Store driving.VectorStore
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
