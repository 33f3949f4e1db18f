package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/pdfkb/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/pdfkb/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
)

// DatabaseFile is the name of the database inside the data directory.
const DatabaseFile = "chunks.db"

// Ensure Store implements the interface.
var _ driven.ChunkRepository = (*Store)(nil)

// Store is a SQLite-based chunk repository.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.pdfkb/data/chunks.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".pdfkb", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
		now:  time.Now,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Initialize applies any pending migrations.
func (s *Store) Initialize(_ context.Context) error {
	if err := s.migrate(migrations.FS); err != nil {
		return fmt.Errorf("%w: running migrations: %v", domain.ErrStoreFailure, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations from the embedded filesystem.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_chunks.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// Upsert writes chunks in one transaction and prunes stale trailing ids.
func (s *Store) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", domain.ErrStoreFailure, err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (filename, chunk_id, file_hash, chunk_key, content, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename, chunk_id) DO UPDATE SET
			file_hash = excluded.file_hash,
			chunk_key = excluded.chunk_key,
			content = excluded.content,
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			created_at = excluded.created_at
	`)
	if err != nil {
		return fmt.Errorf("%w: preparing statement: %v", domain.ErrStoreFailure, err)
	}
	defer stmt.Close()

	now := formatTime(s.now())
	for i := range chunks {
		c := &chunks[i]
		metadataJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.Filename, c.ChunkID, c.FileHash, c.Key, c.Content,
			float32SliceToBytes(c.Embedding), string(metadataJSON), now); err != nil {
			return fmt.Errorf("%w: saving chunk %s/%d: %v", domain.ErrStoreFailure, c.Filename, c.ChunkID, err)
		}
	}

	for filename, total := range domain.PruneBounds(chunks) {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM chunks WHERE filename = ? AND chunk_id >= ?", filename, total); err != nil {
			return fmt.Errorf("%w: pruning %s: %v", domain.ErrStoreFailure, filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
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

	res, err := s.db.ExecContext(ctx, `
		UPDATE chunks SET file_hash = ?, chunk_key = ?, content = ?, embedding = ?, metadata = ?, created_at = ?
		WHERE filename = ? AND chunk_id = ?
	`, chunk.FileHash, chunk.Key, chunk.Content, float32SliceToBytes(chunk.Embedding),
		string(metadataJSON), formatTime(s.now()), chunk.Filename, chunk.ChunkID)
	if err != nil {
		return fmt.Errorf("%w: updating chunk: %v", domain.ErrStoreFailure, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: updating chunk: %v", domain.ErrStoreFailure, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: chunk %s/%d", domain.ErrNotFound, chunk.Filename, chunk.ChunkID)
	}
	return nil
}

const chunkColumns = "filename, chunk_id, file_hash, chunk_key, content, embedding, metadata, created_at"

// Get returns one chunk.
func (s *Store) Get(ctx context.Context, filename string, chunkID int) (*domain.Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE filename = ? AND chunk_id = ?", filename, chunkID)

	c, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: chunk %s/%d", domain.ErrNotFound, filename, chunkID)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Search scores every stored embedding against query.
func (s *Store) Search(ctx context.Context, query []float32, k int, threshold float64) ([]domain.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("%w: querying chunks: %v", domain.ErrStoreFailure, err)
	}
	defer rows.Close()

	ranker := vecmath.NewRanker(threshold)
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		ranker.Offer(query, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating chunks: %v", domain.ErrStoreFailure, err)
	}
	return ranker.Top(k), nil
}

// Delete removes one chunk, or a whole document when chunkID is nil.
func (s *Store) Delete(ctx context.Context, filename string, chunkID *int) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if chunkID == nil {
		res, err = s.db.ExecContext(ctx, "DELETE FROM chunks WHERE filename = ?", filename)
	} else {
		res, err = s.db.ExecContext(ctx,
			"DELETE FROM chunks WHERE filename = ? AND chunk_id = ?", filename, *chunkID)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: deleting chunks: %v", domain.ErrStoreFailure, err)
	}
	return res.RowsAffected()
}

// List returns a document's chunks ordered by id.
func (s *Store) List(ctx context.Context, filename string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE filename = ? ORDER BY chunk_id", filename)
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
		hash  sql.NullString
		count int
	)
	row := s.db.QueryRowContext(ctx,
		"SELECT MAX(file_hash), COUNT(*) FROM chunks WHERE filename = ?", filename)
	if err := row.Scan(&hash, &count); err != nil {
		return "", 0, fmt.Errorf("%w: reading document hash: %v", domain.ErrStoreFailure, err)
	}
	if count == 0 {
		return "", 0, fmt.Errorf("%w: document %s", domain.ErrNotFound, filename)
	}
	return hash.String, count, nil
}

// Info returns collection statistics.
func (s *Store) Info(ctx context.Context) (domain.CollectionInfo, error) {
	info := domain.CollectionInfo{Filenames: []string{}}

	rows, err := s.db.QueryContext(ctx,
		"SELECT filename, COUNT(*) FROM chunks GROUP BY filename ORDER BY filename")
	if err != nil {
		return info, fmt.Errorf("%w: reading collection info: %v", domain.ErrStoreFailure, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			filename string
			count    int
		)
		if err := rows.Scan(&filename, &count); err != nil {
			return info, fmt.Errorf("%w: scanning collection info: %v", domain.ErrStoreFailure, err)
		}
		info.Filenames = append(info.Filenames, filename)
		info.TotalChunks += count
	}
	if err := rows.Err(); err != nil {
		return info, fmt.Errorf("%w: iterating collection info: %v", domain.ErrStoreFailure, err)
	}
	info.TotalDocuments = len(info.Filenames)
	return info, nil
}

// Clear removes every chunk.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chunks")
	if err != nil {
		return 0, fmt.Errorf("%w: clearing chunks: %v", domain.ErrStoreFailure, err)
	}
	return res.RowsAffected()
}

// ==================== Helpers ====================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var (
		c            domain.Chunk
		embedding    []byte
		metadataJSON string
		createdAt    string
	)
	if err := row.Scan(&c.Filename, &c.ChunkID, &c.FileHash, &c.Key, &c.Content,
		&embedding, &metadataJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scanning chunk: %v", domain.ErrStoreFailure, err)
	}

	c.Embedding = bytesToFloat32Slice(embedding)
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling chunk metadata: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		c.CreatedAt = t
	}
	return &c, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// float32SliceToBytes converts []float32 to a little-endian byte slice.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
