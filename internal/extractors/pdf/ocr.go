package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
	"github.com/custodia-labs/pdfkb/internal/logger"
)

var _ driven.ExtractionStrategy = (*OCRStrategy)(nil)

// OCRConfig configures the OCR strategy.
type OCRConfig struct {
	// Languages is the tesseract language list. Default "por+eng".
	Languages string

	// DPI is the rasterisation resolution. Default 144.
	DPI int

	// PdfToPpmCmd and TesseractCmd override the binary names.
	PdfToPpmCmd  string
	TesseractCmd string
}

// OCRStrategy renders every page to PNG and recognises it with tesseract.
type OCRStrategy struct {
	runner CommandRunner
	cfg    OCRConfig
	log    *logger.Logger
}

// NewOCRStrategy creates an OCR strategy. Zero config fields use defaults.
func NewOCRStrategy(runner CommandRunner, cfg OCRConfig, log *logger.Logger) *OCRStrategy {
	if runner == nil {
		runner = ExecRunner{}
	}
	if cfg.Languages == "" {
		cfg.Languages = "por+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 144
	}
	if cfg.PdfToPpmCmd == "" {
		cfg.PdfToPpmCmd = "pdftoppm"
	}
	if cfg.TesseractCmd == "" {
		cfg.TesseractCmd = "tesseract"
	}
	return &OCRStrategy{runner: runner, cfg: cfg, log: log}
}

// Method returns domain.MethodOCR.
func (s *OCRStrategy) Method() domain.ProcessingMethod {
	return domain.MethodOCR
}

// Extract rasterises the document page by page into a temporary directory
// and runs tesseract on each image in page order. A page that fails to
// render or recognise is recorded in FailedPages. When the page count cannot
// be read the whole document is rendered in one pdftoppm call.
func (s *OCRStrategy) Extract(ctx context.Context, path string) (driven.ExtractionOutput, error) {
	var out driven.ExtractionOutput

	dir, err := os.MkdirTemp("", "pdfkb-ocr-*")
	if err != nil {
		return out, fmt.Errorf("create render dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pages := PageCount(path)
	if pages == 0 {
		return s.extractWhole(ctx, path, dir)
	}
	out.Pages = pages
	s.log.Debug("ocr: rendering %d pages of %s at %d dpi", pages, path, s.cfg.DPI)

	texts := make([]string, 0, pages)
	for n := 1; n <= pages; n++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		img, err := s.renderPage(ctx, path, dir, n)
		if err != nil {
			if errors.Is(err, ErrPDFToolNotFound) || ctx.Err() != nil {
				return out, err
			}
			s.log.Warn("ocr: render page %d of %s: %v", n, path, err)
			out.FailedPages = append(out.FailedPages, n)
			continue
		}
		text, ok := s.recognise(ctx, path, img, n)
		if !ok {
			out.FailedPages = append(out.FailedPages, n)
			continue
		}
		if text != "" {
			texts = append(texts, text)
		}
	}

	out.Text = strings.Join(texts, "\n")
	return out, nil
}

// renderPage renders page n to dir/page-n.png.
func (s *OCRStrategy) renderPage(ctx context.Context, path, dir string, n int) (string, error) {
	page := strconv.Itoa(n)
	prefix := filepath.Join(dir, "page-"+page)
	if _, err := s.runner.Run(ctx, s.cfg.PdfToPpmCmd,
		"-r", strconv.Itoa(s.cfg.DPI), "-png", "-f", page, "-l", page, "-singlefile", path, prefix); err != nil {
		return "", err
	}
	return prefix + ".png", nil
}

// extractWhole renders every page with one pdftoppm call.
func (s *OCRStrategy) extractWhole(ctx context.Context, path, dir string) (driven.ExtractionOutput, error) {
	var out driven.ExtractionOutput

	prefix := filepath.Join(dir, "page")
	if _, err := s.runner.Run(ctx, s.cfg.PdfToPpmCmd,
		"-r", strconv.Itoa(s.cfg.DPI), "-png", path, prefix); err != nil {
		return out, fmt.Errorf("render %s: %w", path, err)
	}

	images, err := renderedPages(dir)
	if err != nil {
		return out, err
	}
	out.Pages = len(images)
	s.log.Debug("ocr: rendered %d pages of %s at %d dpi", len(images), path, s.cfg.DPI)

	texts := make([]string, 0, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		text, ok := s.recognise(ctx, path, img, i+1)
		if !ok {
			out.FailedPages = append(out.FailedPages, i+1)
			continue
		}
		if text != "" {
			texts = append(texts, text)
		}
	}

	out.Text = strings.Join(texts, "\n")
	return out, nil
}

// recognise runs tesseract on one page image. Whitespace-only output is
// returned as "".
func (s *OCRStrategy) recognise(ctx context.Context, path, img string, page int) (string, bool) {
	raw, err := s.runner.Run(ctx, s.cfg.TesseractCmd, img, "stdout", "-l", s.cfg.Languages)
	if err != nil {
		s.log.Warn("ocr: page %d of %s: %v", page, path, err)
		return "", false
	}
	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return "", true
	}
	return text, true
}

// renderedPages lists page-N.png files ordered by page number.
// pdftoppm zero-pads N to the width of the page count.
func renderedPages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, fmt.Errorf("list rendered pages: %w", err)
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})
	return matches, nil
}

func pageNumber(file string) int {
	base := strings.TrimSuffix(filepath.Base(file), ".png")
	n, err := strconv.Atoi(strings.TrimPrefix(base, "page-"))
	if err != nil {
		return 0
	}
	return n
}
