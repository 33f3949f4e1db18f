package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider  = "embedding.provider"
	keyEmbedModel     = "embedding.model"
	keyEmbedBaseURL   = "embedding.base_url"
	keyEmbedAPIKey    = "embedding.api_key"
	keyEmbedDims      = "embedding.dimensions"
	keyEmbedBatch     = "embedding.batch_size"
	keyEmbedTimeout   = "embedding.timeout"
	keyEmbedRate      = "embedding.requests_per_second"
	keyStoreBackend   = "store.backend"
	keyStoreDataDir   = "store.data_dir"
	keyPGHost         = "store.postgres.host"
	keyPGPort         = "store.postgres.port"
	keyPGDatabase     = "store.postgres.database"
	keyPGUser         = "store.postgres.user"
	keyPGPassword     = "store.postgres.password"
	keyPGSSLMode      = "store.postgres.sslmode"
	keyPGTable        = "store.postgres.table"
	keyChunkSize      = "chunking.max_size"
	keyChunkOverlap   = "chunking.overlap"
	keyTopK           = "retrieval.top_k"
	keyThreshold      = "retrieval.threshold"
	keyMinNativeChars = "extraction.min_native_chars"
	keyOCRLanguages   = "extraction.ocr_languages"
	keyRenderDPI      = "extraction.render_dpi"
	keyPdfToTextCmd   = "extraction.pdftotext_cmd"
	keyPdfToPpmCmd    = "extraction.pdftoppm_cmd"
	keyTesseractCmd   = "extraction.tesseract_cmd"
	keyPDFFolder      = "pdf_folder"
	keyLogLevel       = "log_level"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindDuration
)

// settingKinds lists every key accepted by Set.
var settingKinds = map[string]valueKind{
	keyEmbedProvider:  kindString,
	keyEmbedModel:     kindString,
	keyEmbedBaseURL:   kindString,
	keyEmbedAPIKey:    kindString,
	keyEmbedDims:      kindInt,
	keyEmbedBatch:     kindInt,
	keyEmbedTimeout:   kindDuration,
	keyEmbedRate:      kindFloat,
	keyStoreBackend:   kindString,
	keyStoreDataDir:   kindString,
	keyPGHost:         kindString,
	keyPGPort:         kindInt,
	keyPGDatabase:     kindString,
	keyPGUser:         kindString,
	keyPGPassword:     kindString,
	keyPGSSLMode:      kindString,
	keyPGTable:        kindString,
	keyChunkSize:      kindInt,
	keyChunkOverlap:   kindInt,
	keyTopK:           kindInt,
	keyThreshold:      kindFloat,
	keyMinNativeChars: kindInt,
	keyOCRLanguages:   kindString,
	keyRenderDPI:      kindInt,
	keyPdfToTextCmd:   kindString,
	keyPdfToPpmCmd:    kindString,
	keyTesseractCmd:   kindString,
	keyPDFFolder:      kindString,
	keyLogLevel:       kindString,
}

// SettingKeys returns the keys accepted by Set, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService manages application settings. Values resolve from
// defaults, then the config store, then the overlay (environment).
type SettingsService struct {
	configStore driven.ConfigStore
	overlay     driven.SettingsOverlay
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
// The overlay and aiValidator parameters are optional (can be nil).
func NewSettingsService(
	configStore driven.ConfigStore,
	overlay driven.SettingsOverlay,
	aiValidator driven.AIConfigValidator,
) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		overlay:     overlay,
		aiValidator: aiValidator,
	}
}

// Get retrieves the effective application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := s.Stored()
	if s.overlay != nil {
		if err := s.overlay.Apply(settings); err != nil {
			return nil, err
		}
	}
	return settings, nil
}

// Stored returns defaults merged with the config store only.
func (s *SettingsService) Stored() *domain.AppSettings {
	d := domain.DefaultAppSettings()

	return &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:             s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			Dimensions:        s.getInt(keyEmbedDims, d.Embedding.Dimensions),
			BatchSize:         s.getInt(keyEmbedBatch, d.Embedding.BatchSize),
			Timeout:           s.getDuration(keyEmbedTimeout, d.Embedding.Timeout),
			RequestsPerSecond: s.getFloat(keyEmbedRate, d.Embedding.RequestsPerSecond),
		},
		Store: domain.StoreSettings{
			Backend: s.getBackend(d.Store.Backend),
			DataDir: s.getString(keyStoreDataDir, d.Store.DataDir),
			Postgres: domain.PostgresSettings{
				Host:     s.getString(keyPGHost, d.Store.Postgres.Host),
				Port:     s.getInt(keyPGPort, d.Store.Postgres.Port),
				Database: s.getString(keyPGDatabase, d.Store.Postgres.Database),
				User:     s.getString(keyPGUser, d.Store.Postgres.User),
				Password: s.configStore.GetString(keyPGPassword),
				SSLMode:  s.getString(keyPGSSLMode, d.Store.Postgres.SSLMode),
				Table:    s.getString(keyPGTable, d.Store.Postgres.Table),
			},
		},
		Chunking: domain.ChunkingSettings{
			MaxSize: s.getInt(keyChunkSize, d.Chunking.MaxSize),
			Overlap: s.getIntAllowZero(keyChunkOverlap, d.Chunking.Overlap),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:      s.getInt(keyTopK, d.Retrieval.TopK),
			Threshold: s.getFloat(keyThreshold, d.Retrieval.Threshold),
		},
		Extraction: domain.ExtractionSettings{
			MinNativeChars: s.getIntAllowZero(keyMinNativeChars, d.Extraction.MinNativeChars),
			OCRLanguages:   s.getString(keyOCRLanguages, d.Extraction.OCRLanguages),
			RenderDPI:      s.getInt(keyRenderDPI, d.Extraction.RenderDPI),
			PdfToTextCmd:   s.getString(keyPdfToTextCmd, d.Extraction.PdfToTextCmd),
			PdfToPpmCmd:    s.getString(keyPdfToPpmCmd, d.Extraction.PdfToPpmCmd),
			TesseractCmd:   s.getString(keyTesseractCmd, d.Extraction.TesseractCmd),
		},
		PDFFolder: s.getString(keyPDFFolder, d.PDFFolder),
		LogLevel:  s.getString(keyLogLevel, d.LogLevel),
	}
}

// Save persists application settings. Environment overrides present in
// settings are written too, so callers should pass stored values.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyEmbedBatch, settings.Embedding.BatchSize},
		{keyEmbedTimeout, settings.Embedding.Timeout.String()},
		{keyEmbedRate, settings.Embedding.RequestsPerSecond},
		{keyStoreBackend, settings.Store.Backend.String()},
		{keyStoreDataDir, settings.Store.DataDir},
		{keyPGHost, settings.Store.Postgres.Host},
		{keyPGPort, settings.Store.Postgres.Port},
		{keyPGDatabase, settings.Store.Postgres.Database},
		{keyPGUser, settings.Store.Postgres.User},
		{keyPGSSLMode, settings.Store.Postgres.SSLMode},
		{keyPGTable, settings.Store.Postgres.Table},
		{keyChunkSize, settings.Chunking.MaxSize},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyTopK, settings.Retrieval.TopK},
		{keyThreshold, settings.Retrieval.Threshold},
		{keyMinNativeChars, settings.Extraction.MinNativeChars},
		{keyOCRLanguages, settings.Extraction.OCRLanguages},
		{keyRenderDPI, settings.Extraction.RenderDPI},
		{keyPdfToTextCmd, settings.Extraction.PdfToTextCmd},
		{keyPdfToPpmCmd, settings.Extraction.PdfToPpmCmd},
		{keyTesseractCmd, settings.Extraction.TesseractCmd},
		{keyPDFFolder, settings.PDFFolder},
		{keyLogLevel, settings.LogLevel},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when present.
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyEmbedAPIKey, err)
		}
	}
	if settings.Store.Postgres.Password != "" {
		if err := s.configStore.Set(keyPGPassword, settings.Store.Postgres.Password); err != nil {
			return fmt.Errorf("save %s: %w", keyPGPassword, err)
		}
	}

	return nil
}

// Set stores one key. The value is parsed according to the key's type and
// the resulting settings must validate, otherwise the previous value is kept.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	parsed, err := parseSetting(kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}

	previous, existed := s.configStore.Get(key)
	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	if err := s.checkStored(key); err != nil {
		if existed {
			_ = s.configStore.Set(key, previous)
		} else {
			_ = s.configStore.Delete(key)
		}
		return err
	}
	return nil
}

// checkStored validates stored settings and rejects enum values that the
// getters would otherwise silently replace with defaults.
func (s *SettingsService) checkStored(key string) error {
	switch key {
	case keyEmbedProvider:
		if p := domain.AIProvider(s.configStore.GetString(key)); !p.IsValid() {
			return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidConfig, p)
		}
	case keyStoreBackend:
		if b := domain.StoreBackend(s.configStore.GetString(key)); !b.IsValid() {
			return fmt.Errorf("%w: unknown store backend %q", domain.ErrInvalidConfig, b)
		}
	}
	return s.Stored().Validate()
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidConfig, provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidConfig, provider)
	}

	settings := s.Stored()
	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	// Local providers need a base URL, cloud providers use the default endpoint.
	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey
	settings.Embedding.Dimensions = 0

	if err := s.Save(settings); err != nil {
		return err
	}
	if apiKey == "" {
		return s.configStore.Delete(keyEmbedAPIKey)
	}
	return nil
}

// Validate checks the effective settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %s is not configured",
			domain.ErrEmbeddingUnavailable, settings.Embedding.Provider)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

func parseSetting(kind valueKind, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch kind {
	case kindInt:
		return strconv.Atoi(value)
	case kindFloat:
		return strconv.ParseFloat(value, 64)
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	default:
		return value, nil
	}
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero treats an explicit 0 as a value rather than "unset".
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.StoreBackend) domain.StoreBackend {
	val := s.configStore.GetString(keyStoreBackend)
	if val == "" {
		return defaultVal
	}
	backend := domain.StoreBackend(val)
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
