// Package postgres provides a PostgreSQL + pgvector driven.ChunkRepository.
//
// Chunks live in a single table keyed by (filename, chunk_id) with a
// vector(<dims>) embedding column indexed by ivfflat using cosine distance.
// Similarity is reported as 1 - cosine distance. Connections come from a
// pgxpool.Pool; vectors travel as pgvector text literals.
//
// EnsureDatabase and EnsureExtension back the "db setup" command.
package postgres
