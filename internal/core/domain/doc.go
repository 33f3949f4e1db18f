// Package domain defines the core entities of the pdfkb knowledge base.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: Extracted text of one PDF with its extraction metadata
//   - Chunk: A bounded, embedded segment of a document
//   - SearchResult: A ranked retrieval hit
//   - CollectionInfo: Statistics about the stored collection
//   - AppSettings: Application configuration
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
