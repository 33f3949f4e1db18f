package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
	"github.com/custodia-labs/pdfkb/internal/logger"
)

// Default index parameters.
const (
	DefaultTable  = "chunks"
	DefaultLists  = 100
	DefaultProbes = 10
)

// Ensure Store implements the interface.
var _ driven.ChunkRepository = (*Store)(nil)

// Config configures the postgres store.
type Config struct {
	// DSN is the connection URL of the target database.
	DSN string

	// Table is the chunk table name. Empty uses DefaultTable.
	Table string

	// Dimensions fixes the vector column size. Zero leaves it unconstrained
	// and skips the ivfflat index.
	Dimensions int

	// Lists is the ivfflat list count.
	Lists int

	// Probes is the number of ivfflat lists scanned per query.
	Probes int
}

// Store is a pgvector-backed chunk repository.
type Store struct {
	pool   *pgxpool.Pool
	cfg    Config
	table  string
	log    *logger.Logger
	mu     sync.Mutex
	closed bool
}

// NewStore connects to postgres. The schema is created by Initialize.
func NewStore(ctx context.Context, cfg Config, log *logger.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: postgres DSN is required", domain.ErrInvalidConfig)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.Lists <= 0 {
		cfg.Lists = DefaultLists
	}
	if cfg.Probes <= 0 {
		cfg.Probes = DefaultProbes
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to postgres: %v", domain.ErrStoreFailure, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: pinging postgres: %v", domain.ErrStoreFailure, err)
	}

	return &Store{
		pool:  pool,
		cfg:   cfg,
		table: pgx.Identifier{cfg.Table}.Sanitize(),
		log:   log,
	}, nil
}

// Initialize creates the extension, table and indexes.
func (s *Store) Initialize(ctx context.Context) error {
	embeddingType := "vector"
	if s.cfg.Dimensions > 0 {
		embeddingType = fmt.Sprintf("vector(%d)", s.cfg.Dimensions)
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			filename TEXT NOT NULL,
			chunk_id INTEGER NOT NULL,
			file_hash TEXT NOT NULL,
			chunk_key TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding %s,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (filename, chunk_id)
		)`, s.table, embeddingType),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (filename)",
			pgx.Identifier{s.cfg.Table + "_filename_idx"}.Sanitize(), s.table),
	}
	if s.cfg.Dimensions > 0 {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)",
			pgx.Identifier{s.cfg.Table + "_embedding_idx"}.Sanitize(), s.table, s.cfg.Lists))
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: initializing schema: %v", domain.ErrStoreFailure, err)
		}
	}
	s.log.Debug("postgres schema ready (table %s, dims %d)", s.cfg.Table, s.cfg.Dimensions)
	return nil
}

// Upsert writes chunks in one transaction and prunes stale trailing ids.
func (s *Store) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", domain.ErrStoreFailure, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := fmt.Sprintf(`
		INSERT INTO %s (filename, chunk_id, file_hash, chunk_key, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::vector, $7::jsonb, now())
		ON CONFLICT (filename, chunk_id) DO UPDATE SET
			file_hash = EXCLUDED.file_hash,
			chunk_key = EXCLUDED.chunk_key,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			created_at = now()
	`, s.table)

	batch := &pgx.Batch{}
	for i := range chunks {
		c := &chunks[i]
		metadataJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		batch.Queue(query, c.Filename, c.ChunkID, c.FileHash, c.Key, c.Content,
			pgvector.NewVector(c.Embedding), string(metadataJSON))
	}
	prune := fmt.Sprintf("DELETE FROM %s WHERE filename = $1 AND chunk_id >= $2", s.table)
	for filename, total := range domain.PruneBounds(chunks) {
		batch.Queue(prune, filename, total)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%w: saving chunks: %v", domain.ErrStoreFailure, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", domain.ErrStoreFailure, err)
	}
	return nil
}

// Update overwrites an existing chunk.
func (s *Store) Update(ctx context.Context, chunk domain.Chunk) error {
	metadataJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling chunk metadata: %w", err)
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET file_hash = $1, chunk_key = $2, content = $3, embedding = $4::vector,
			metadata = $5::jsonb, created_at = now()
		WHERE filename = $6 AND chunk_id = $7
	`, s.table), chunk.FileHash, chunk.Key, chunk.Content, pgvector.NewVector(chunk.Embedding),
		string(metadataJSON), chunk.Filename, chunk.ChunkID)
	if err != nil {
		return fmt.Errorf("%w: updating chunk: %v", domain.ErrStoreFailure, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: chunk %s/%d", domain.ErrNotFound, chunk.Filename, chunk.ChunkID)
	}
	return nil
}

// chunkColumns selects vector and json columns as text so no type
// registration is needed on the connection.
const chunkColumns = "filename, chunk_id, file_hash, chunk_key, content, embedding::text, metadata::text, created_at"

// Get returns one chunk.
func (s *Store) Get(ctx context.Context, filename string, chunkID int) (*domain.Chunk, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE filename = $1 AND chunk_id = $2", chunkColumns, s.table), filename, chunkID)

	c, err := scanChunk(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: chunk %s/%d", domain.ErrNotFound, filename, chunkID)
	}
	return c, err
}

// Search ranks chunks by cosine distance using the ivfflat index.
func (s *Store) Search(ctx context.Context, query []float32, k int, threshold float64) ([]domain.SearchResult, error) {
	results := []domain.SearchResult{}
	if k <= 0 {
		return results, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning search: %v", domain.ErrStoreFailure, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL ivfflat.probes = %d", s.cfg.Probes)); err != nil {
		return nil, fmt.Errorf("%w: setting probes: %v", domain.ErrStoreFailure, err)
	}

	rows, err := tx.Query(ctx, fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $1::vector) AS similarity
		FROM %s
		WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1::vector) > $2
		ORDER BY embedding <=> $1::vector, filename, chunk_id
		LIMIT $3
	`, chunkColumns, s.table), pgvector.NewVector(query), threshold, k)
	if err != nil {
		return nil, fmt.Errorf("%w: searching chunks: %v", domain.ErrStoreFailure, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c   domain.Chunk
			sim float64
		)
		if err := scanInto(rows, &c, &sim); err != nil {
			return nil, err
		}
		results = append(results, domain.SearchResult{
			Content:    c.Content,
			Similarity: sim,
			Filename:   c.Filename,
			ChunkID:    c.ChunkID,
			Metadata:   c.Metadata,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating results: %v", domain.ErrStoreFailure, err)
	}
	return results, nil
}

// Delete removes one chunk, or a whole document when chunkID is nil.
func (s *Store) Delete(ctx context.Context, filename string, chunkID *int) (int64, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if chunkID == nil {
		tag, err = s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE filename = $1", s.table), filename)
	} else {
		tag, err = s.pool.Exec(ctx, fmt.Sprintf(
			"DELETE FROM %s WHERE filename = $1 AND chunk_id = $2", s.table), filename, *chunkID)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: deleting chunks: %v", domain.ErrStoreFailure, err)
	}
	return tag.RowsAffected(), nil
}

// List returns a document's chunks ordered by id.
func (s *Store) List(ctx context.Context, filename string) ([]domain.Chunk, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE filename = $1 ORDER BY chunk_id", chunkColumns, s.table), filename)
	if err != nil {
		return nil, fmt.Errorf("%w: listing chunks: %v", domain.ErrStoreFailure, err)
	}
	defer rows.Close()

	chunks := []domain.Chunk{}
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating chunks: %v", domain.ErrStoreFailure, err)
	}
	return chunks, nil
}

// DocumentHash returns the hash and chunk count stored for a document.
func (s *Store) DocumentHash(ctx context.Context, filename string) (string, int, error) {
	var (
		hash  *string
		count int
	)
	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		"SELECT MAX(file_hash), COUNT(*) FROM %s WHERE filename = $1", s.table), filename).Scan(&hash, &count)
	if err != nil {
		return "", 0, fmt.Errorf("%w: reading document hash: %v", domain.ErrStoreFailure, err)
	}
	if count == 0 || hash == nil {
		return "", 0, fmt.Errorf("%w: document %s", domain.ErrNotFound, filename)
	}
	return *hash, count, nil
}

// Info returns collection statistics.
func (s *Store) Info(ctx context.Context) (domain.CollectionInfo, error) {
	info := domain.CollectionInfo{Filenames: []string{}}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		"SELECT filename, COUNT(*) FROM %s GROUP BY filename ORDER BY filename", s.table))
	if err != nil {
		return info, fmt.Errorf("%w: reading collection info: %v", domain.ErrStoreFailure, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			filename string
			count    int64
		)
		if err := rows.Scan(&filename, &count); err != nil {
			return info, fmt.Errorf("%w: scanning collection info: %v", domain.ErrStoreFailure, err)
		}
		info.Filenames = append(info.Filenames, filename)
		info.TotalChunks += int(count)
	}
	if err := rows.Err(); err != nil {
		return info, fmt.Errorf("%w: iterating collection info: %v", domain.ErrStoreFailure, err)
	}
	info.TotalDocuments = len(info.Filenames)
	return info, nil
}

// Clear removes every chunk.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.table))
	if err != nil {
		return 0, fmt.Errorf("%w: clearing chunks: %v", domain.ErrStoreFailure, err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the connection pool. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.pool.Close()
		s.closed = true
	}
	return nil
}

// dropTable removes the chunk table. Used by integration tests.
func (s *Store) dropTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table))
	return err
}

func scanChunk(row pgx.Row) (*domain.Chunk, error) {
	var c domain.Chunk
	if err := scanInto(row, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanInto(row pgx.Row, c *domain.Chunk, extra ...any) error {
	var (
		embedding    *string
		metadataJSON string
		createdAt    time.Time
	)
	dest := append([]any{&c.Filename, &c.ChunkID, &c.FileHash, &c.Key, &c.Content,
		&embedding, &metadataJSON, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return fmt.Errorf("%w: scanning chunk: %v", domain.ErrStoreFailure, err)
	}

	if embedding != nil {
		var v pgvector.Vector
		if err := v.Scan(*embedding); err != nil {
			return fmt.Errorf("%w: parsing embedding: %v", domain.ErrStoreFailure, err)
		}
		c.Embedding = v.Slice()
	}
	if err := json.Unmarshal([]byte(metadataJSON), &c.Metadata); err != nil {
		return fmt.Errorf("unmarshalling chunk metadata: %w", err)
	}
	c.CreatedAt = createdAt
	return nil
}
