package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/pdfkb/internal/adapters/driven/ai"
	"github.com/custodia-labs/pdfkb/internal/adapters/driven/config/env"
	"github.com/custodia-labs/pdfkb/internal/adapters/driven/config/file"
	"github.com/custodia-labs/pdfkb/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/pdfkb/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driven"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driving"
	"github.com/custodia-labs/pdfkb/internal/core/services"
	"github.com/custodia-labs/pdfkb/internal/extractors/pdf"
	"github.com/custodia-labs/pdfkb/internal/logger"
	"github.com/custodia-labs/pdfkb/internal/postprocessors/chunker"
)

// Services used by the commands. They are built on first use; tests assign
// them directly.
var (
	log              *logger.Logger
	settingsService  driving.SettingsService
	textExtractor    driving.TextExtractor
	vectorStore      driving.VectorStore
	ingestionService driving.IngestionService
	retrievalService driving.RetrievalService
)

// closers release what the lazy builders opened, in reverse order.
var closers []func()

func closeServices() {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	closers = nil
}

func onClose(fn func()) {
	closers = append(closers, fn)
}

func resolvedConfigDir() (string, error) {
	if configDir != "" {
		return configDir, nil
	}
	return file.DefaultDir()
}

// requireSettings builds the settings service from the config file and the
// environment.
func requireSettings() (driving.SettingsService, error) {
	if settingsService != nil {
		return settingsService, nil
	}

	dir, err := resolvedConfigDir()
	if err != nil {
		return nil, err
	}
	store, err := file.NewConfigStore(dir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	overlay, err := env.Load(envFile)
	if err != nil {
		return nil, err
	}

	settingsService = services.NewSettingsService(store, overlay, ai.NewConfigValidator())
	onClose(func() { settingsService = nil })
	return settingsService, nil
}

// loadSettings returns validated effective settings and applies the
// configured log level unless --verbose or LOG_LEVEL decided it already.
func loadSettings() (*domain.AppSettings, error) {
	svc, err := requireSettings()
	if err != nil {
		return nil, err
	}
	settings, err := svc.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if log != nil && !verbose && os.Getenv("LOG_LEVEL") == "" && settings.LogLevel != "" {
		log.SetLevel(logger.ParseLevel(settings.LogLevel))
	}
	return settings, nil
}

func requireExtractor() (driving.TextExtractor, error) {
	if textExtractor != nil {
		return textExtractor, nil
	}
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	ex := settings.Extraction
	if err := pdf.CheckAvailable(ex.PdfToTextCmd, ex.PdfToPpmCmd, ex.TesseractCmd); err != nil {
		// Native extraction still works; the external tiers fail per document.
		currentLog().Warn("%v\n%s", err, pdf.InstallInstructions())
	}

	runner := pdf.ExecRunner{}
	strategies := []driven.ExtractionStrategy{
		pdf.NewNativeStrategy(currentLog()),
		pdf.NewLayoutStrategy(runner, ex.PdfToTextCmd, currentLog()),
		pdf.NewOCRStrategy(runner, pdf.OCRConfig{
			Languages:    ex.OCRLanguages,
			DPI:          ex.RenderDPI,
			PdfToPpmCmd:  ex.PdfToPpmCmd,
			TesseractCmd: ex.TesseractCmd,
		}, currentLog()),
	}

	textExtractor = services.NewTextExtractor(strategies, ex.MinNativeChars, currentLog())
	onClose(func() { textExtractor = nil })
	return textExtractor, nil
}

// requireVectorStore opens the configured repository, connects the embedding
// provider and initializes the collection.
func requireVectorStore(ctx context.Context) (driving.VectorStore, error) {
	if vectorStore != nil {
		return vectorStore, nil
	}
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	embedder, err := ai.CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		return nil, err
	}

	repo, err := openRepository(ctx, settings)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	store := services.NewVectorStoreService(repo, embedder, services.VectorStoreConfig{
		BatchSize: settings.Embedding.BatchSize,
		Timeout:   settings.Embedding.Timeout,
		TopK:      settings.Retrieval.TopK,
		Threshold: settings.Retrieval.Threshold,
	}, currentLog())
	onClose(func() {
		vectorStore = nil
		if err := repo.Close(); err != nil {
			currentLog().Warn("Closing store: %v", err)
		}
		_ = embedder.Close()
	})

	if err := store.Initialize(ctx); err != nil {
		return nil, err
	}

	vectorStore = store
	return vectorStore, nil
}

func openRepository(ctx context.Context, settings *domain.AppSettings) (driven.ChunkRepository, error) {
	switch settings.Store.Backend {
	case domain.StoreBackendPostgres:
		pg := settings.Store.Postgres
		return postgres.NewStore(ctx, postgres.Config{
			DSN:        pg.DSN(),
			Table:      pg.Table,
			Dimensions: settings.Embedding.ResolvedDimensions(),
		}, currentLog())
	default:
		dataDir := settings.Store.DataDir
		if dataDir == "" {
			dir, err := resolvedConfigDir()
			if err != nil {
				return nil, err
			}
			dataDir = filepath.Join(dir, "data")
		}
		return sqlite.NewStore(dataDir)
	}
}

func requireIngestion(ctx context.Context) (driving.IngestionService, error) {
	if ingestionService != nil {
		return ingestionService, nil
	}
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	extractor, err := requireExtractor()
	if err != nil {
		return nil, err
	}
	store, err := requireVectorStore(ctx)
	if err != nil {
		return nil, err
	}
	proc, err := chunker.New(
		chunker.WithChunkSize(settings.Chunking.MaxSize),
		chunker.WithOverlap(settings.Chunking.Overlap),
	)
	if err != nil {
		return nil, err
	}

	ingestionService = services.NewIngestionService(extractor, proc, store, currentLog())
	onClose(func() { ingestionService = nil })
	return ingestionService, nil
}

func requireRetrieval(ctx context.Context) (driving.RetrievalService, error) {
	if retrievalService != nil {
		return retrievalService, nil
	}
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	store, err := requireVectorStore(ctx)
	if err != nil {
		return nil, err
	}

	retrievalService = services.NewRetrievalService(store,
		settings.Retrieval.TopK, settings.Retrieval.Threshold, currentLog())
	onClose(func() { retrievalService = nil })
	return retrievalService, nil
}

func currentLog() *logger.Logger {
	if log == nil {
		return logger.Nop()
	}
	return log
}

// hint adds a next step to errors the user can fix with configuration.
func hint(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return fmt.Errorf("%w\nRun 'pdfkb settings show' to inspect the embedding configuration", err)
	case errors.Is(err, domain.ErrStoreFailure):
		return fmt.Errorf("%w\nRun 'pdfkb db setup' to provision the postgres database", err)
	default:
		return err
	}
}
