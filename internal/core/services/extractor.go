package services

import (
	"context"
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driving"
	"github.com/custodia-labs/pdfkb/internal/logger"
)

// Ensure TextExtractor implements the interface.
var _ driving.TextExtractor = (*TextExtractor)(nil)

// DefaultMinNativeChars is the number of non-whitespace characters a tier
// must produce before later, more expensive tiers are skipped.
const DefaultMinNativeChars = 50

// TextExtractor runs an ordered list of extraction strategies and keeps the
// first output that clears the sufficiency gate.
type TextExtractor struct {
	strategies []driven.ExtractionStrategy
	minChars   int
	log        *logger.Logger
}

// NewTextExtractor creates an extractor. Strategies are tried in order, the
// last one being the fallback of last resort (normally OCR).
func NewTextExtractor(strategies []driven.ExtractionStrategy, minChars int, log *logger.Logger) *TextExtractor {
	if minChars < 0 {
		minChars = DefaultMinNativeChars
	}
	return &TextExtractor{
		strategies: strategies,
		minChars:   minChars,
		log:        log,
	}
}

// tierResult is the output of one attempted strategy.
type tierResult struct {
	method domain.ProcessingMethod
	out    driven.ExtractionOutput
	chars  int
}

// Extract validates path, runs the tiers and returns normalized text.
func (e *TextExtractor) Extract(ctx context.Context, path string) (*domain.Document, error) {
	e.log.Section("Extraction")

	info, err := validatePDF(path)
	if err != nil {
		return nil, err
	}
	if len(e.strategies) == 0 {
		return nil, fmt.Errorf("%w: no extraction strategies configured", domain.ErrInvalidConfig)
	}

	hash, err := fileMD5(path)
	if err != nil {
		return nil, fmt.Errorf("%w: hash %s: %w", domain.ErrInvalidInput, path, err)
	}

	chosen, err := e.runTiers(ctx, path)
	if err != nil {
		return nil, err
	}

	text := NormalizeText(chosen.out.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: %s: no text after normalization", domain.ErrExtractionFailed, path)
	}

	e.log.Info("Extracted %s with %s: %d pages, %d chars", filepath.Base(path), chosen.method, chosen.out.Pages, len([]rune(text)))

	return &domain.Document{
		Filename: filepath.Base(path),
		Text:     text,
		Metadata: domain.ExtractionMetadata{
			FilePath:   path,
			FileSize:   info.Size(),
			FileHash:   hash,
			TextLength: len([]rune(text)),
			Method:     chosen.method,
			Pages:      chosen.out.Pages,
		},
	}, nil
}

// runTiers tries each strategy until one clears the gate. Empty output never
// clears it, even with a zero minimum. When none does,
// the last tier's output wins if it has any text, otherwise the richest
// earlier output.
func (e *TextExtractor) runTiers(ctx context.Context, path string) (*tierResult, error) {
	var (
		attempts []tierResult
		maxPages int
	)

	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := s.Extract(ctx, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			e.log.Warn("%s extraction of %s failed: %v", s.Method(), path, err)
			attempts = append(attempts, tierResult{method: s.Method()})
			continue
		}
		maxPages = max(maxPages, out.Pages)

		r := tierResult{method: s.Method(), out: out, chars: nonSpaceCount(out.Text)}
		e.log.Debug("%s: %d non-whitespace chars over %d pages", r.method, r.chars, out.Pages)
		if r.chars > 0 && r.chars >= e.minChars {
			return withPages(r, maxPages), nil
		}
		attempts = append(attempts, r)
	}

	last := attempts[len(attempts)-1]
	if last.chars > 0 {
		return withPages(last, maxPages), nil
	}

	var best *tierResult
	for i := range attempts {
		if attempts[i].chars > 0 && (best == nil || attempts[i].chars > best.chars) {
			best = &attempts[i]
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s: no tier produced text", domain.ErrExtractionFailed, path)
	}
	return withPages(*best, maxPages), nil
}

func withPages(r tierResult, pages int) *tierResult {
	if r.out.Pages == 0 {
		r.out.Pages = pages
	}
	return &r
}

// validatePDF rejects missing, non-PDF and empty files.
func validatePDF(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, fmt.Errorf("%w: %s is not a .pdf file", domain.ErrInvalidInput, path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, path)
	}
	return info, nil
}

// fileMD5 returns the hex MD5 digest of the file contents.
func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New() //nolint:gosec // see import
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
