package pdf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/extractors/pdf/pdftest"
	"github.com/custodia-labs/pdfkb/internal/logger"
)

func TestOCRStrategy_Defaults(t *testing.T) {
	s := NewOCRStrategy(nil, OCRConfig{}, logger.Nop())

	assert.Equal(t, domain.MethodOCR, s.Method())
	assert.Equal(t, "por+eng", s.cfg.Languages)
	assert.Equal(t, 144, s.cfg.DPI)
	assert.Equal(t, "pdftoppm", s.cfg.PdfToPpmCmd)
	assert.Equal(t, "tesseract", s.cfg.TesseractCmd)
	assert.IsType(t, ExecRunner{}, s.runner)
}

func TestOCRStrategy_Extract(t *testing.T) {
	runner := &mockRunner{}
	runner.run = func(name string, args []string) ([]byte, error) {
		switch name {
		case "pdftoppm":
			writeFakePages(t, args, 3)
			return nil, nil
		case "tesseract":
			return []byte("text of " + filepath.Base(args[0])), nil
		}
		return nil, errors.New("unexpected command " + name)
	}
	s := NewOCRStrategy(runner, OCRConfig{Languages: "deu+eng", DPI: 200}, logger.Nop())

	out, err := s.Extract(context.Background(), "/scans/a.pdf")

	require.NoError(t, err)
	assert.Equal(t, 3, out.Pages)
	assert.Equal(t, "text of page-1.png\ntext of page-2.png\ntext of page-3.png", out.Text)
	assert.Empty(t, out.FailedPages)

	require.Len(t, runner.calls, 4)
	render := runner.calls[0]
	assert.Equal(t, []string{"pdftoppm", "-r", "200", "-png", "/scans/a.pdf"}, render[:5])
	assert.Equal(t, []string{"stdout", "-l", "deu+eng"}, runner.calls[1][2:])
}

func TestOCRStrategy_PagesSortedNumerically(t *testing.T) {
	runner := &mockRunner{}
	runner.run = func(name string, args []string) ([]byte, error) {
		if name == "pdftoppm" {
			writeFakePages(t, args, 11)
			return nil, nil
		}
		return []byte(strings.TrimSuffix(filepath.Base(args[0]), ".png")), nil
	}
	s := NewOCRStrategy(runner, OCRConfig{}, logger.Nop())

	out, err := s.Extract(context.Background(), "/scans/long.pdf")

	require.NoError(t, err)
	lines := strings.Split(out.Text, "\n")
	require.Len(t, lines, 11)
	assert.Equal(t, "page-01", lines[0])
	assert.Equal(t, "page-02", lines[1])
	assert.Equal(t, "page-11", lines[10])
}

func TestOCRStrategy_PageFailureSkipped(t *testing.T) {
	runner := &mockRunner{}
	runner.run = func(name string, args []string) ([]byte, error) {
		if name == "pdftoppm" {
			writeFakePages(t, args, 3)
			return nil, nil
		}
		if strings.HasSuffix(args[0], "page-2.png") {
			return nil, errors.New("tesseract crashed")
		}
		return []byte("ok"), nil
	}
	s := NewOCRStrategy(runner, OCRConfig{}, logger.Nop())

	out, err := s.Extract(context.Background(), "/scans/a.pdf")

	require.NoError(t, err)
	assert.Equal(t, 3, out.Pages)
	assert.Equal(t, []int{2}, out.FailedPages)
	assert.Equal(t, "ok\nok", out.Text)
}

// renderSinglePage writes the image pdftoppm -singlefile would produce and
// returns the requested page number.
func renderSinglePage(t *testing.T, args []string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(args[len(args)-1]+".png", []byte("png"), 0o600))
	for i, a := range args {
		if a == "-f" {
			return args[i+1]
		}
	}
	t.Fatalf("no -f in %v", args)
	return ""
}

func TestOCRStrategy_RendersPageByPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, pdftest.Write(path, []string{"", "", ""}))

	runner := &mockRunner{}
	runner.run = func(name string, args []string) ([]byte, error) {
		switch name {
		case "pdftoppm":
			if renderSinglePage(t, args) == "2" {
				return nil, errors.New("Syntax Error: bad page object")
			}
			return nil, nil
		case "tesseract":
			return []byte("text of " + filepath.Base(args[0])), nil
		}
		return nil, errors.New("unexpected command " + name)
	}
	s := NewOCRStrategy(runner, OCRConfig{DPI: 150}, logger.Nop())

	out, err := s.Extract(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 3, out.Pages)
	assert.Equal(t, []int{2}, out.FailedPages)
	assert.Equal(t, "text of page-1.png\ntext of page-3.png", out.Text)

	require.Len(t, runner.calls, 5)
	assert.Equal(t, []string{"pdftoppm", "-r", "150", "-png", "-f", "1", "-l", "1", "-singlefile", path},
		runner.calls[0][:10])
}

func TestOCRStrategy_MissingRendererAbortsPerPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, pdftest.Write(path, []string{"", ""}))
	runner := &mockRunner{err: ErrPDFToolNotFound}

	_, err := NewOCRStrategy(runner, OCRConfig{}, logger.Nop()).Extract(context.Background(), path)

	assert.ErrorIs(t, err, ErrPDFToolNotFound)
	assert.Len(t, runner.calls, 1)
}

func TestOCRStrategy_RenderError(t *testing.T) {
	runner := &mockRunner{err: ErrPDFToolNotFound}
	s := NewOCRStrategy(runner, OCRConfig{}, logger.Nop())

	_, err := s.Extract(context.Background(), "/scans/a.pdf")

	assert.ErrorIs(t, err, ErrPDFToolNotFound)
}

func TestPageNumber(t *testing.T) {
	assert.Equal(t, 7, pageNumber("/tmp/x/page-007.png"))
	assert.Equal(t, 12, pageNumber("page-12.png"))
	assert.Equal(t, 0, pageNumber("cover.png"))
}
