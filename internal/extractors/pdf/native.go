package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
	"github.com/custodia-labs/pdfkb/internal/logger"
)

var _ driven.ExtractionStrategy = (*NativeStrategy)(nil)

// NativeStrategy reads the PDF text layer page by page.
type NativeStrategy struct {
	log *logger.Logger
}

// NewNativeStrategy creates the in-process text layer reader.
func NewNativeStrategy(log *logger.Logger) *NativeStrategy {
	return &NativeStrategy{log: log}
}

// Method returns domain.MethodNative.
func (s *NativeStrategy) Method() domain.ProcessingMethod {
	return domain.MethodNative
}

// Extract joins the non-empty page texts with newlines.
func (s *NativeStrategy) Extract(ctx context.Context, path string) (out driven.ExtractionOutput, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return out, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	out.Pages = r.NumPage()
	texts := make([]string, 0, out.Pages)
	for i := 1; i <= out.Pages; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		text, err := s.pageText(r, i)
		if err != nil {
			s.log.Warn("native: page %d of %s: %v", i, path, err)
			out.FailedPages = append(out.FailedPages, i)
			continue
		}
		if strings.TrimSpace(text) != "" {
			texts = append(texts, text)
		}
	}

	out.Text = strings.Join(texts, "\n")
	return out, nil
}

func (s *NativeStrategy) pageText(r *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()

	p := r.Page(n)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

// PageCount reads the page count from the document catalog. It returns 0
// when the file cannot be parsed.
func PageCount(path string) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	return r.NumPage()
}
