package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driving"
	"github.com/custodia-labs/pdfkb/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService composes extraction, chunking and storage.
type IngestionService struct {
	extractor driving.TextExtractor
	chunker   driven.PostProcessor
	store     driving.VectorStore
	log       *logger.Logger
	now       func() time.Time
}

// NewIngestionService creates an ingestion service.
func NewIngestionService(
	extractor driving.TextExtractor,
	chunker driven.PostProcessor,
	store driving.VectorStore,
	log *logger.Logger,
) *IngestionService {
	return &IngestionService{
		extractor: extractor,
		chunker:   chunker,
		store:     store,
		log:       log,
		now:       time.Now,
	}
}

// IngestFolder processes every non-empty .pdf file in dir, sequentially and
// in name order. A failing document is recorded and skipped.
func (s *IngestionService) IngestFolder(
	ctx context.Context, dir string, opts domain.IngestOptions,
) (*domain.IngestSummary, error) {
	summary := &domain.IngestSummary{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
	}
	defer func() { summary.FinishedAt = s.now() }()

	files, err := listPDFs(dir)
	if err != nil {
		return summary, err
	}

	s.log.Section("Ingestion")
	s.log.Info("Run %s: %d PDF files in %s", summary.RunID, len(files), dir)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			s.log.Warn("Run %s cancelled after %d documents", summary.RunID, summary.DocumentsAttempted)
			return summary, err
		}

		summary.DocumentsAttempted++
		name := filepath.Base(path)

		n, skipped, err := s.ingest(ctx, path, opts)
		switch {
		case err != nil && isContextErr(ctx, err):
			summary.Failures = append(summary.Failures, domain.IngestFailure{Filename: name, Error: err.Error()})
			return summary, ctx.Err()
		case err != nil:
			s.log.Error("Failed to ingest %s: %v", name, err)
			summary.Failures = append(summary.Failures, domain.IngestFailure{Filename: name, Error: err.Error()})
		case skipped:
			summary.DocumentsSucceeded++
			summary.DocumentsSkipped++
		default:
			summary.DocumentsSucceeded++
			summary.ChunksCreated += n
		}
	}

	s.log.Info("Run %s: %d/%d documents, %d chunks, %d skipped, %d failed",
		summary.RunID, summary.DocumentsSucceeded, summary.DocumentsAttempted,
		summary.ChunksCreated, summary.DocumentsSkipped, len(summary.Failures))
	return summary, nil
}

// IngestFile processes a single PDF and returns the number of chunks stored.
// An unchanged document returns 0 unless opts.Force is set.
func (s *IngestionService) IngestFile(ctx context.Context, path string, opts domain.IngestOptions) (int, error) {
	n, _, err := s.ingest(ctx, path, opts)
	return n, err
}

// RemoveFile deletes every chunk of the document at path.
func (s *IngestionService) RemoveFile(ctx context.Context, path string) error {
	return s.store.Delete(ctx, filepath.Base(path), nil)
}

// ingest runs one document through the pipeline. It reports whether the
// document was skipped as unchanged.
func (s *IngestionService) ingest(ctx context.Context, path string, opts domain.IngestOptions) (int, bool, error) {
	name := filepath.Base(path)

	if !opts.Force {
		unchanged, err := s.unchanged(ctx, path)
		if err != nil {
			return 0, false, err
		}
		if unchanged {
			s.log.Info("Skipping %s: unchanged since last ingestion", name)
			return 0, true, nil
		}
	}

	doc, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return 0, false, err
	}

	chunks, err := s.chunker.Process(ctx, doc)
	if err != nil {
		return 0, false, err
	}
	if len(chunks) == 0 {
		return 0, false, fmt.Errorf("%w: %s produced no chunks", domain.ErrExtractionFailed, name)
	}

	if err := s.store.Add(ctx, chunks); err != nil {
		return 0, false, err
	}
	s.log.Info("Ingested %s: %d chunks (%s)", name, len(chunks), doc.Metadata.Method)
	return len(chunks), false, nil
}

// unchanged reports whether the stored chunks of path carry the file's current hash.
func (s *IngestionService) unchanged(ctx context.Context, path string) (bool, error) {
	if _, err := validatePDF(path); err != nil {
		return false, err
	}
	stored, err := s.store.DocumentHash(ctx, filepath.Base(path))
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	current, err := fileMD5(path)
	if err != nil {
		return false, fmt.Errorf("%w: hash %s: %w", domain.ErrInvalidInput, path, err)
	}
	return stored == current, nil
}

// listPDFs returns the non-empty .pdf files directly inside dir, sorted by name.
func listPDFs(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrInvalidInput, dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		fi, err := entry.Info()
		if err != nil || fi.Size() == 0 {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func isContextErr(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
