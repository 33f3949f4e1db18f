package cli

import (
	"bytes"
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfkb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/services"
	"github.com/custodia-labs/pdfkb/internal/logger"
)

// wordEmbedder hashes words into a unit vector so that texts sharing
// vocabulary are similar.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return wordVector(text), nil
}

func (wordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = wordVector(t)
	}
	return out, nil
}

func (wordEmbedder) Dimensions() int              { return 32 }
func (wordEmbedder) ModelName() string            { return "words" }
func (wordEmbedder) Ping(_ context.Context) error { return nil }
func (wordEmbedder) Close() error                 { return nil }

func wordVector(text string) []float32 {
	v := make([]float32, 32)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) }) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%32]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] /= float32(math.Sqrt(norm))
	}
	return v
}

// stubExtractor returns a fixed document or error.
type stubExtractor struct {
	doc *domain.Document
	err error
}

func (s *stubExtractor) Extract(_ context.Context, _ string) (*domain.Document, error) {
	return s.doc, s.err
}

// recordingIngestion records folder runs and returns a canned summary.
type recordingIngestion struct {
	mu      sync.Mutex
	dirs    []string
	opts    []domain.IngestOptions
	summary *domain.IngestSummary
	err     error
}

func (r *recordingIngestion) IngestFolder(_ context.Context, dir string, opts domain.IngestOptions) (*domain.IngestSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs = append(r.dirs, dir)
	r.opts = append(r.opts, opts)
	return r.summary, r.err
}

func (r *recordingIngestion) IngestFile(context.Context, string, domain.IngestOptions) (int, error) {
	return 0, nil
}

func (r *recordingIngestion) RemoveFile(context.Context, string) error {
	return nil
}

// failingRetrieval fails every query.
type failingRetrieval struct{}

func (failingRetrieval) Retrieve(context.Context, string) ([]domain.SearchResult, error) {
	return nil, errors.New("boom")
}

func (failingRetrieval) RetrieveWith(context.Context, string, domain.SearchOptions) ([]domain.SearchResult, error) {
	return nil, errors.New("boom")
}

// testEnv exposes the services installed by setupTestServices.
type testEnv struct {
	store     *services.VectorStoreService
	settings  *services.SettingsService
	ingestion *recordingIngestion
	extractor *stubExtractor
}

// setupTestServices installs in-memory services and returns a cleanup func
// that restores the package state.
func setupTestServices() (*testEnv, func()) {
	env := &testEnv{
		store: services.NewVectorStoreService(memory.NewChunkStore(), wordEmbedder{},
			services.VectorStoreConfig{TopK: 5, Threshold: 0.1}, logger.Nop()),
		settings:  services.NewSettingsService(memory.NewConfigStore(), nil, nil),
		ingestion: &recordingIngestion{summary: &domain.IngestSummary{}},
		extractor: &stubExtractor{},
	}

	log = logger.Nop()
	settingsService = env.settings
	vectorStore = env.store
	retrievalService = services.NewRetrievalService(env.store, 5, 0.1, logger.Nop())
	ingestionService = env.ingestion
	textExtractor = env.extractor

	return env, func() {
		closeServices()
		log = nil
		settingsService = nil
		vectorStore = nil
		retrievalService = nil
		ingestionService = nil
		textExtractor = nil
		resetFlags(rootCmd)
	}
}

// resetFlags restores every flag to its default; cobra keeps flag state
// between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns the combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// seedChunks stores chunks for two documents.
func seedChunks(t *testing.T, env *testEnv) {
	t.Helper()
	meta := domain.ChunkMetadata{ExtractionMetadata: domain.ExtractionMetadata{Method: domain.MethodNative, Pages: 2}}
	chunks := []domain.Chunk{
		{Filename: "invoice.pdf", FileHash: "aa", ChunkID: 0, Content: "invoice total amount due", Metadata: meta},
		{Filename: "invoice.pdf", FileHash: "aa", ChunkID: 1, Content: "payment terms thirty days", Metadata: meta},
		{Filename: "manual.pdf", FileHash: "bb", ChunkID: 0, Content: "assembly instructions for the shelf", Metadata: meta},
	}
	for i := range chunks {
		chunks[i].Metadata.ChunkIndex = chunks[i].ChunkID
		chunks[i].Metadata.TotalChunks = 1
		if chunks[i].Filename == "invoice.pdf" {
			chunks[i].Metadata.TotalChunks = 2
		}
		chunks[i].Key = domain.ChunkKey(chunks[i].FileHash, chunks[i].ChunkID)
	}
	require.NoError(t, env.store.Add(context.Background(), chunks))
}
