package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
	"github.com/custodia-labs/pdfkb/internal/logger"
)

var _ driven.ExtractionStrategy = (*LayoutStrategy)(nil)

// LayoutStrategy extracts the text layer with pdftotext -layout, which
// reconstructs reading order from glyph positions rather than content
// stream order.
type LayoutStrategy struct {
	runner  CommandRunner
	command string
	log     *logger.Logger
}

// NewLayoutStrategy creates a pdftotext based strategy.
// An empty command defaults to "pdftotext".
func NewLayoutStrategy(runner CommandRunner, command string, log *logger.Logger) *LayoutStrategy {
	if runner == nil {
		runner = ExecRunner{}
	}
	if command == "" {
		command = "pdftotext"
	}
	return &LayoutStrategy{runner: runner, command: command, log: log}
}

// Method returns domain.MethodLayout.
func (s *LayoutStrategy) Method() domain.ProcessingMethod {
	return domain.MethodLayout
}

// Extract runs pdftotext and joins the non-empty pages with newlines.
func (s *LayoutStrategy) Extract(ctx context.Context, path string) (driven.ExtractionOutput, error) {
	raw, err := s.runner.Run(ctx, s.command, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return driven.ExtractionOutput{}, fmt.Errorf("pdftotext %s: %w", path, err)
	}

	pages := splitPages(string(raw))
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			texts = append(texts, p)
		}
	}
	s.log.Debug("layout: %s has %d pages, %d with text", path, len(pages), len(texts))

	return driven.ExtractionOutput{
		Text:  strings.Join(texts, "\n"),
		Pages: len(pages),
	}, nil
}

// splitPages splits pdftotext output on form feeds. pdftotext terminates
// every page with one, so a trailing empty segment is dropped.
func splitPages(out string) []string {
	if out == "" {
		return nil
	}
	pages := strings.Split(out, "\f")
	if len(pages) > 1 && pages[len(pages)-1] == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}
