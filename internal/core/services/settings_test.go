package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfkb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

// stubOverlay sets fields the way an environment overlay would.
type stubOverlay struct {
	apply func(*domain.AppSettings)
	err   error
}

func (o stubOverlay) Apply(s *domain.AppSettings) error {
	if o.err != nil {
		return o.err
	}
	if o.apply != nil {
		o.apply(s)
	}
	return nil
}

// stubValidator records the settings it was asked to validate.
type stubValidator struct {
	got *domain.EmbeddingSettings
	err error
}

func (v *stubValidator) ValidateEmbedding(cfg *domain.EmbeddingSettings) error {
	v.got = cfg
	return v.err
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil, nil)

	settings, err := service.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultAppSettings(), *settings)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("embedding.provider", "ollama")
	_ = store.Set("embedding.model", "all-minilm")
	_ = store.Set("retrieval.top_k", 12)
	_ = store.Set("retrieval.threshold", 0.0)
	_ = store.Set("chunking.overlap", 0)
	_ = store.Set("embedding.timeout", "45s")
	_ = store.Set("store.backend", "postgres")
	_ = store.Set("store.postgres.port", 6543)

	settings, err := NewSettingsService(store, nil, nil).Get()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "all-minilm", settings.Embedding.Model)
	assert.Equal(t, 12, settings.Retrieval.TopK)
	assert.Zero(t, settings.Retrieval.Threshold, "explicit zero threshold is kept")
	assert.Zero(t, settings.Chunking.Overlap, "explicit zero overlap is kept")
	assert.Equal(t, 45*time.Second, settings.Embedding.Timeout)
	assert.Equal(t, domain.StoreBackendPostgres, settings.Store.Backend)
	assert.Equal(t, 6543, settings.Store.Postgres.Port)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("embedding.provider", "invalid_provider")
	_ = store.Set("store.backend", "mongo")
	_ = store.Set("embedding.timeout", "soon")

	settings, err := NewSettingsService(store, nil, nil).Get()
	require.NoError(t, err)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, defaults.Store.Backend, settings.Store.Backend)
	assert.Equal(t, defaults.Embedding.Timeout, settings.Embedding.Timeout)
}

func TestSettingsService_Get_OverlayWins(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("retrieval.top_k", 3)
	overlay := stubOverlay{apply: func(s *domain.AppSettings) { s.Retrieval.TopK = 7 }}

	settings, err := NewSettingsService(store, overlay, nil).Get()
	require.NoError(t, err)
	assert.Equal(t, 7, settings.Retrieval.TopK)
	assert.Equal(t, 3, NewSettingsService(store, overlay, nil).Stored().Retrieval.TopK)

	failing := stubOverlay{err: domain.ErrInvalidConfig}
	_, err = NewSettingsService(store, failing, nil).Get()
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestSettingsService_Save_RoundTrip(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil, nil)

	want := domain.DefaultAppSettings()
	want.Embedding.Provider = domain.AIProviderOllama
	want.Embedding.Model = "nomic-embed-text"
	want.Embedding.BaseURL = "http://localhost:11434"
	want.Embedding.Timeout = time.Minute
	want.Store.Postgres.Password = "pw"
	want.Chunking.MaxSize = 800
	want.Chunking.Overlap = 100
	want.Retrieval.Threshold = 0.5

	require.NoError(t, service.Save(&want))

	got, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestSettingsService_Save_RejectsInvalid(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil, nil)

	bad := domain.DefaultAppSettings()
	bad.Chunking.Overlap = bad.Chunking.MaxSize

	assert.ErrorIs(t, service.Save(&bad), domain.ErrInvalidConfig)
	_, ok := store.Get("chunking.overlap")
	assert.False(t, ok)
}

func TestSettingsService_Set(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
		check   func(t *testing.T, s *domain.AppSettings)
	}{
		{
			name: "int", key: "retrieval.top_k", value: "10",
			check: func(t *testing.T, s *domain.AppSettings) { assert.Equal(t, 10, s.Retrieval.TopK) },
		},
		{
			name: "float", key: "retrieval.threshold", value: "0.25",
			check: func(t *testing.T, s *domain.AppSettings) { assert.InDelta(t, 0.25, s.Retrieval.Threshold, 1e-9) },
		},
		{
			name: "duration", key: "embedding.timeout", value: "90s",
			check: func(t *testing.T, s *domain.AppSettings) { assert.Equal(t, 90*time.Second, s.Embedding.Timeout) },
		},
		{
			name: "backend", key: "store.backend", value: "postgres",
			check: func(t *testing.T, s *domain.AppSettings) {
				assert.Equal(t, domain.StoreBackendPostgres, s.Store.Backend)
			},
		},
		{name: "unknown key", key: "search.mode", value: "hybrid", wantErr: domain.ErrInvalidInput},
		{name: "not a number", key: "retrieval.top_k", value: "lots", wantErr: domain.ErrInvalidInput},
		{name: "bad duration", key: "embedding.timeout", value: "10", wantErr: domain.ErrInvalidInput},
		{name: "overlap too large", key: "chunking.overlap", value: "1000", wantErr: domain.ErrInvalidConfig},
		{name: "threshold out of range", key: "retrieval.threshold", value: "1.5", wantErr: domain.ErrInvalidConfig},
		{name: "unknown backend", key: "store.backend", value: "mongo", wantErr: domain.ErrInvalidConfig},
		{name: "unknown provider", key: "embedding.provider", value: "cohere", wantErr: domain.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewConfigStore()
			service := NewSettingsService(store, nil, nil)

			err := service.Set(tt.key, tt.value)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				_, ok := store.Get(tt.key)
				assert.False(t, ok, "rejected value must not be stored")
				return
			}
			require.NoError(t, err)
			settings, err := service.Get()
			require.NoError(t, err)
			tt.check(t, settings)
		})
	}
}

func TestSettingsService_Set_RestoresPreviousValue(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil, nil)

	require.NoError(t, service.Set("chunking.overlap", "100"))
	require.Error(t, service.Set("chunking.overlap", "5000"))

	assert.Equal(t, 100, store.GetInt("chunking.overlap"))
}

func TestSettingKeys_Sorted(t *testing.T) {
	keys := SettingKeys()
	assert.IsIncreasing(t, keys)
	assert.Contains(t, keys, "retrieval.top_k")
	assert.Contains(t, keys, "store.postgres.host")
}

func TestSettingsService_SetEmbeddingProvider(t *testing.T) {
	t.Run("ollama gets default model and base url", func(t *testing.T) {
		store := memory.NewConfigStore()
		service := NewSettingsService(store, nil, nil)

		require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOllama, "", ""))

		settings, err := service.Get()
		require.NoError(t, err)
		assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
		assert.Equal(t, "nomic-embed-text", settings.Embedding.Model)
		assert.Equal(t, "http://localhost:11434", settings.Embedding.BaseURL)
		assert.Empty(t, settings.Embedding.APIKey)
	})

	t.Run("openai requires key", func(t *testing.T) {
		service := NewSettingsService(memory.NewConfigStore(), nil, nil)
		err := service.SetEmbeddingProvider(domain.AIProviderOpenAI, "", "")
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})

	t.Run("openai with key and model", func(t *testing.T) {
		service := NewSettingsService(memory.NewConfigStore(), nil, nil)
		require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOpenAI, "text-embedding-3-small", "sk-1"))

		settings, err := service.Get()
		require.NoError(t, err)
		assert.Equal(t, "text-embedding-3-small", settings.Embedding.Model)
		assert.Equal(t, "sk-1", settings.Embedding.APIKey)
		assert.Empty(t, settings.Embedding.BaseURL)
	})

	t.Run("invalid provider", func(t *testing.T) {
		service := NewSettingsService(memory.NewConfigStore(), nil, nil)
		err := service.SetEmbeddingProvider(domain.AIProvider("cohere"), "", "")
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})
}

func TestSettingsService_Validate(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil, nil)

	// Default provider is openai without a key.
	assert.ErrorIs(t, service.Validate(), domain.ErrEmbeddingUnavailable)

	_ = store.Set("embedding.api_key", "sk-test")
	assert.NoError(t, service.Validate())
}

func TestSettingsService_ValidateEmbeddingConfig(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("embedding.model", "text-embedding-3-large")

	assert.NoError(t, NewSettingsService(store, nil, nil).ValidateEmbeddingConfig())

	validator := &stubValidator{err: errors.New("unreachable")}
	err := NewSettingsService(store, nil, validator).ValidateEmbeddingConfig()
	assert.EqualError(t, err, "unreachable")
	require.NotNil(t, validator.got)
	assert.Equal(t, "text-embedding-3-large", validator.got.Model)
}

func TestSettingsService_GetDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil, nil)
	assert.Equal(t, domain.DefaultAppSettings(), service.GetDefaults())
}
