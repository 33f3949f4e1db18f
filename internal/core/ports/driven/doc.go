// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
//   - ExtractionStrategy: One text extraction tier (native, layout, OCR)
//   - ChunkRepository: Chunk persistence and vector similarity (SQLite, PostgreSQL)
//   - EmbeddingService: Vector generation (OpenAI, Ollama)
//   - ConfigStore: Application configuration (TOML)
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
