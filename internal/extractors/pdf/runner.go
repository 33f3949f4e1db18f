package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrPDFToolNotFound indicates a required external binary (pdftotext,
// pdftoppm or tesseract) is not installed.
var ErrPDFToolNotFound = errors.New("pdf tool not found: install poppler-utils (pdftotext, pdftoppm) and tesseract")

// CommandRunner executes an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args. A non-zero exit includes stderr in the error.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPDFToolNotFound, name)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// CheckAvailable verifies that every named binary is on PATH.
// With no arguments it checks the default poppler and tesseract tools.
func CheckAvailable(commands ...string) error {
	if len(commands) == 0 {
		commands = []string{"pdftotext", "pdftoppm", "tesseract"}
	}
	var missing []string
	for _, c := range commands {
		if _, err := exec.LookPath(c); err != nil {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrPDFToolNotFound, strings.Join(missing, ", "))
	}
	return nil
}

// InstallInstructions returns platform-specific installation guidance.
func InstallInstructions() string {
	return `pdfkb needs poppler (pdftotext, pdftoppm) and tesseract for layout and OCR extraction.

  macOS:          brew install poppler tesseract tesseract-lang
  Debian/Ubuntu:  sudo apt install poppler-utils tesseract-ocr tesseract-ocr-por
  Fedora:         sudo dnf install poppler-utils tesseract tesseract-langpack-por

Custom binary paths can be set with PDFTOTEXT_CMD, PDFTOPPM_CMD and TESSERACT_CMD.`
}
