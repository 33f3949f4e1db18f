// Package pdf implements the PDF text extraction tiers.
//
// Three strategies satisfy driven.ExtractionStrategy:
//
//   - NativeStrategy reads the embedded text layer in-process.
//   - LayoutStrategy runs poppler's pdftotext in layout mode.
//   - OCRStrategy rasterises pages with pdftoppm and recognises them with tesseract.
//
// External binaries are invoked through a CommandRunner so tests can
// substitute canned output.
package pdf
