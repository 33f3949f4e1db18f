package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

func scannedDocument() *domain.Document {
	return &domain.Document{
		Filename: "scan.pdf",
		Text:     "Invoice 42\n\nTotal due: 100 EUR",
		Metadata: domain.ExtractionMetadata{
			FilePath:   "/tmp/scan.pdf",
			FileSize:   2048,
			FileHash:   "0123456789abcdef0123456789abcdef",
			TextLength: 30,
			Method:     domain.MethodOCR,
			Pages:      1,
		},
	}
}

func TestExtractCmd(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	env.extractor.doc = scannedDocument()

	out, err := execute(t, "extract", "/tmp/scan.pdf")

	require.NoError(t, err)
	assert.Contains(t, out, "File: scan.pdf")
	assert.Contains(t, out, "Method: ocr")
	assert.Contains(t, out, "Pages: 1")
	assert.Contains(t, out, "Preview: Invoice 42 Total due: 100 EUR")
}

func TestExtractCmd_FullText(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	env.extractor.doc = scannedDocument()

	out, err := execute(t, "extract", "--text", "/tmp/scan.pdf")

	require.NoError(t, err)
	assert.Contains(t, out, "Invoice 42\n\nTotal due: 100 EUR")
	assert.NotContains(t, out, "Preview:")
}

func TestExtractCmd_JSON(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	env.extractor.doc = scannedDocument()

	out, err := execute(t, "extract", "--json", "/tmp/scan.pdf")
	require.NoError(t, err)

	var meta domain.ExtractionMetadata
	require.NoError(t, json.Unmarshal([]byte(out), &meta))
	assert.Equal(t, domain.MethodOCR, meta.Method)
	assert.Equal(t, int64(2048), meta.FileSize)
}

func TestExtractCmd_Error(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	env.extractor.err = domain.ErrExtractionFailed

	_, err := execute(t, "extract", "/tmp/blank.pdf")

	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}
