// Package mcp provides an MCP (Model Context Protocol) server adapter for the
// PDF knowledge base. It lets AI assistants search the ingested collection.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
