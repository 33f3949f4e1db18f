package domain

// ProcessingMethod names the extraction tier that produced a document's text.
type ProcessingMethod string

// Extraction tiers, in the order they are attempted.
const (
	// MethodNative reads the embedded text layer page by page.
	MethodNative ProcessingMethod = "native"

	// MethodLayout reads the text layer with layout-preserving heuristics.
	MethodLayout ProcessingMethod = "layout"

	// MethodOCR renders pages to images and runs optical character recognition.
	MethodOCR ProcessingMethod = "ocr"
)

// String returns the string representation.
func (m ProcessingMethod) String() string {
	return string(m)
}

// IsValid returns true if the method is recognised.
func (m ProcessingMethod) IsValid() bool {
	switch m {
	case MethodNative, MethodLayout, MethodOCR:
		return true
	default:
		return false
	}
}

// ExtractionMetadata describes how a document's text was obtained.
type ExtractionMetadata struct {
	// FilePath is the path the document was read from.
	FilePath string `json:"file_path"`

	// FileSize is the size of the source file in bytes.
	FileSize int64 `json:"file_size"`

	// FileHash is the hex MD5 digest of the file bytes.
	FileHash string `json:"file_hash"`

	// TextLength is the number of characters in the normalized text.
	TextLength int `json:"text_length"`

	// Method is the tier whose output was kept.
	Method ProcessingMethod `json:"processing_method"`

	// Pages is the page count reported by the winning tier.
	Pages int `json:"pages"`
}

// Document is the extracted, normalized text of one PDF file.
// It is never persisted directly; its chunks are.
type Document struct {
	// Filename is the base name of the source file.
	Filename string

	// Text is the normalized extracted text.
	Text string

	// Metadata describes the extraction.
	Metadata ExtractionMetadata
}
