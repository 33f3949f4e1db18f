package domain

import (
	"fmt"
	"net/url"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available embedding providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI API or a compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// StoreBackend selects the chunk repository implementation.
type StoreBackend string

// Available store backends.
const (
	// StoreBackendSQLite keeps chunks in a local SQLite file and scans vectors in memory.
	StoreBackendSQLite StoreBackend = "sqlite"

	// StoreBackendPostgres keeps chunks in PostgreSQL with a pgvector ivfflat index.
	StoreBackendPostgres StoreBackend = "postgres"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	return b == StoreBackendSQLite || b == StoreBackendPostgres
}

// String returns the string representation.
func (b StoreBackend) String() string {
	return string(b)
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions overrides the vector size. Zero uses the known size for Model.
	Dimensions int

	// BatchSize is the number of texts sent per embedding request.
	BatchSize int

	// Timeout bounds each provider call.
	Timeout time.Duration

	// RequestsPerSecond throttles provider calls. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ResolvedDimensions returns Dimensions, or the known size of Model.
func (e EmbeddingSettings) ResolvedDimensions() int {
	if e.Dimensions > 0 {
		return e.Dimensions
	}
	return EmbeddingDimensions()[e.Model]
}

// PostgresSettings holds connection parameters for the postgres backend.
type PostgresSettings struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	Table    string
}

// DSN builds a postgres connection URL.
func (p PostgresSettings) DSN() string {
	return p.dsnFor(p.Database)
}

// AdminDSN builds a connection URL to the maintenance database,
// used to create the target database.
func (p PostgresSettings) AdminDSN() string {
	return p.dsnFor("postgres")
}

func (p PostgresSettings) dsnFor(database string) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + database,
	}
	if p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	} else {
		u.User = url.User(p.User)
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{p.SSLMode}}.Encode()
	}
	return u.String()
}

// StoreSettings selects and configures the chunk repository.
type StoreSettings struct {
	// Backend is the repository implementation.
	Backend StoreBackend

	// DataDir holds the SQLite database file.
	DataDir string

	// Postgres configures the postgres backend.
	Postgres PostgresSettings
}

// ChunkingSettings configures the chunker.
type ChunkingSettings struct {
	// MaxSize is the maximum chunk length in characters.
	MaxSize int

	// Overlap is the number of characters shared by consecutive chunks.
	Overlap int
}

// RetrievalSettings holds the default search policy.
type RetrievalSettings struct {
	// TopK is the maximum number of results.
	TopK int

	// Threshold is the exclusive minimum cosine similarity.
	Threshold float64
}

// ExtractionSettings configures the extraction tiers.
type ExtractionSettings struct {
	// MinNativeChars is the number of non-whitespace characters a tier must
	// produce for its output to be accepted without trying the next tier.
	// Zero accepts any non-empty output.
	MinNativeChars int

	// OCRLanguages is the tesseract language list, e.g. "por+eng".
	OCRLanguages string

	// RenderDPI is the page rasterisation resolution for OCR.
	RenderDPI int

	// PdfToTextCmd, PdfToPpmCmd and TesseractCmd name the external binaries.
	PdfToTextCmd string
	PdfToPpmCmd  string
	TesseractCmd string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding  EmbeddingSettings
	Store      StoreSettings
	Chunking   ChunkingSettings
	Retrieval  RetrievalSettings
	Extraction ExtractionSettings

	// PDFFolder is the default folder for ingestion.
	PDFFolder string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOpenAI,
			Model:     "text-embedding-ada-002",
			BatchSize: 64,
			Timeout:   30 * time.Second,
		},
		Store: StoreSettings{
			Backend: StoreBackendSQLite,
			Postgres: PostgresSettings{
				Host:     "localhost",
				Port:     5432,
				Database: "pdfkb",
				User:     "postgres",
				SSLMode:  "prefer",
				Table:    "chunks",
			},
		},
		Chunking: ChunkingSettings{
			MaxSize: 1000,
			Overlap: 200,
		},
		Retrieval: RetrievalSettings{
			TopK:      5,
			Threshold: 0.7,
		},
		Extraction: ExtractionSettings{
			MinNativeChars: 50,
			OCRLanguages:   "por+eng",
			RenderDPI:      144, // 2x the 72 dpi PDF user space
			PdfToTextCmd:   "pdftotext",
			PdfToPpmCmd:    "pdftoppm",
			TesseractCmd:   "tesseract",
		},
		PDFFolder: "./pdfs",
		LogLevel:  "info",
	}
}

// Validate checks settings that would make the pipeline misbehave.
func (s AppSettings) Validate() error {
	if s.Chunking.MaxSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, s.Chunking.MaxSize)
	}
	if s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.MaxSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d",
			ErrInvalidConfig, s.Chunking.MaxSize, s.Chunking.Overlap)
	}
	if s.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, s.Retrieval.TopK)
	}
	if s.Retrieval.Threshold < -1 || s.Retrieval.Threshold >= 1 {
		return fmt.Errorf("%w: similarity threshold must be in [-1, 1), got %v",
			ErrInvalidConfig, s.Retrieval.Threshold)
	}
	if !s.Store.Backend.IsValid() {
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, s.Store.Backend)
	}
	if s.Embedding.Provider != "" && !s.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, s.Embedding.Provider)
	}
	if s.Extraction.MinNativeChars < 0 {
		return fmt.Errorf("%w: min native chars must not be negative", ErrInvalidConfig)
	}
	if s.Extraction.RenderDPI <= 0 {
		return fmt.Errorf("%w: render dpi must be positive", ErrInvalidConfig)
	}
	return nil
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-ada-002",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
