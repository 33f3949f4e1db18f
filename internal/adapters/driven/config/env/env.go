// Package env overlays environment variables, optionally seeded from a
// .env file, on top of stored settings.
package env

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
)

// Ensure Overrides implements the interface.
var _ driven.SettingsOverlay = (*Overrides)(nil)

// Overrides holds the recognised environment variables. Nil fields were not set.
type Overrides struct {
	EmbeddingProvider   *string        `env:"EMBEDDING_PROVIDER"`
	EmbeddingModel      *string        `env:"EMBEDDING_MODEL"`
	EmbeddingDimensions *int           `env:"EMBEDDING_DIMENSIONS"`
	EmbedBatchSize      *int           `env:"EMBED_BATCH_SIZE"`
	EmbedTimeout        *time.Duration `env:"EMBED_TIMEOUT"`
	OpenAIAPIKey        *string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL       *string        `env:"OPENAI_API_BASE"`
	OllamaURL           *string        `env:"OLLAMA_URL"`

	Store            *string `env:"PDFKB_STORE"`
	DataDir          *string `env:"PDFKB_DATA_DIR"`
	PostgresHost     *string `env:"POSTGRES_HOST"`
	PostgresPort     *int    `env:"POSTGRES_PORT"`
	PostgresDB       *string `env:"POSTGRES_DB"`
	PostgresUser     *string `env:"POSTGRES_USER"`
	PostgresPassword *string `env:"POSTGRES_PASSWORD"`
	PostgresSSLMode  *string `env:"POSTGRES_SSLMODE"`
	PostgresTable    *string `env:"POSTGRES_TABLE"`

	MaxChunkSize *int     `env:"MAX_CHUNK_SIZE"`
	ChunkOverlap *int     `env:"CHUNK_OVERLAP"`
	TopK         *int     `env:"TOP_K"`
	Threshold    *float64 `env:"SIMILARITY_THRESHOLD"`

	MinNativeChars *int    `env:"MIN_NATIVE_CHARS"`
	OCRLanguages   *string `env:"OCR_LANGUAGES"`
	RenderDPI      *int    `env:"OCR_DPI"`
	PdfToTextCmd   *string `env:"PDFTOTEXT_CMD"`
	PdfToPpmCmd    *string `env:"PDFTOPPM_CMD"`
	TesseractCmd   *string `env:"TESSERACT_CMD"`

	PDFFolder *string `env:"PDF_FOLDER"`
	LogLevel  *string `env:"LOG_LEVEL"`
}

// Load reads dotenv files, if present, into the process environment without
// replacing variables that are already set, then parses the environment.
// With no files it looks for ./.env.
func Load(dotenvFiles ...string) (*Overrides, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: loading %s: %v", domain.ErrInvalidConfig, f, err)
		}
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (*Overrides, error) {
	var o Overrides
	if err := env.Parse(&o); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return &o, nil
}

// Apply copies every set variable into settings. Provider specific
// variables only apply to the provider in effect after the overlay.
func (o *Overrides) Apply(s *domain.AppSettings) error {
	if o.EmbeddingProvider != nil {
		p := domain.AIProvider(*o.EmbeddingProvider)
		if !p.IsValid() {
			return fmt.Errorf("%w: EMBEDDING_PROVIDER %q", domain.ErrInvalidConfig, p)
		}
		s.Embedding.Provider = p
	}
	setString(&s.Embedding.Model, o.EmbeddingModel)
	setInt(&s.Embedding.Dimensions, o.EmbeddingDimensions)
	setInt(&s.Embedding.BatchSize, o.EmbedBatchSize)
	if o.EmbedTimeout != nil {
		s.Embedding.Timeout = *o.EmbedTimeout
	}

	switch s.Embedding.Provider {
	case domain.AIProviderOpenAI:
		setString(&s.Embedding.APIKey, o.OpenAIAPIKey)
		setString(&s.Embedding.BaseURL, o.OpenAIBaseURL)
	case domain.AIProviderOllama:
		setString(&s.Embedding.BaseURL, o.OllamaURL)
	}

	if o.Store != nil {
		b := domain.StoreBackend(*o.Store)
		if !b.IsValid() {
			return fmt.Errorf("%w: PDFKB_STORE %q", domain.ErrInvalidConfig, b)
		}
		s.Store.Backend = b
	}
	setString(&s.Store.DataDir, o.DataDir)
	setString(&s.Store.Postgres.Host, o.PostgresHost)
	setInt(&s.Store.Postgres.Port, o.PostgresPort)
	setString(&s.Store.Postgres.Database, o.PostgresDB)
	setString(&s.Store.Postgres.User, o.PostgresUser)
	setString(&s.Store.Postgres.Password, o.PostgresPassword)
	setString(&s.Store.Postgres.SSLMode, o.PostgresSSLMode)
	setString(&s.Store.Postgres.Table, o.PostgresTable)

	setInt(&s.Chunking.MaxSize, o.MaxChunkSize)
	setInt(&s.Chunking.Overlap, o.ChunkOverlap)
	setInt(&s.Retrieval.TopK, o.TopK)
	if o.Threshold != nil {
		s.Retrieval.Threshold = *o.Threshold
	}

	setInt(&s.Extraction.MinNativeChars, o.MinNativeChars)
	setString(&s.Extraction.OCRLanguages, o.OCRLanguages)
	setInt(&s.Extraction.RenderDPI, o.RenderDPI)
	setString(&s.Extraction.PdfToTextCmd, o.PdfToTextCmd)
	setString(&s.Extraction.PdfToPpmCmd, o.PdfToPpmCmd)
	setString(&s.Extraction.TesseractCmd, o.TesseractCmd)

	setString(&s.PDFFolder, o.PDFFolder)
	setString(&s.LogLevel, o.LogLevel)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
