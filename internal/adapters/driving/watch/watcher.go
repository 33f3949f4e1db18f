// Package watch keeps the knowledge base in sync with a folder of PDFs by
// reacting to filesystem events.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
	"github.com/custodia-labs/pdfkb/internal/core/ports/driving"
	"github.com/custodia-labs/pdfkb/internal/logger"
)

// DefaultDebounce is how long a file must be quiet before it is processed.
// Copying a large PDF produces a burst of write events.
const DefaultDebounce = 750 * time.Millisecond

// Action is what the watcher does with a changed file.
type Action int

const (
	// ActionIngest re-ingests a created or modified file.
	ActionIngest Action = iota + 1

	// ActionRemove deletes the chunks of a removed or renamed file.
	ActionRemove
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionIngest:
		return "ingest"
	case ActionRemove:
		return "remove"
	default:
		return "none"
	}
}

// Watcher feeds changed PDFs in one folder to an ingestion service.
type Watcher struct {
	dir       string
	ingestion driving.IngestionService
	log       *logger.Logger
	debounce  time.Duration

	// processed receives each handled path; used by tests.
	processed chan<- string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a file is processed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher for dir.
func New(dir string, ingestion driving.IngestionService, log *logger.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		dir:       dir,
		ingestion: ingestion,
		log:       log,
		debounce:  DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches the folder until ctx is cancelled. Files are processed one at a
// time on the calling goroutine; a failing file is logged and skipped.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("%w: watch folder: %w", domain.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, w.dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info("Watching %s for PDF changes", w.dir)

	pending := make(map[string]pendingChange)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if action := classify(event); action != 0 {
				pending[event.Name] = pendingChange{action: action, at: time.Now()}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watcher error: %v", err)

		case now := <-ticker.C:
			for _, path := range due(pending, now, w.debounce) {
				change := pending[path]
				delete(pending, path)
				w.apply(ctx, path, change.action)
			}
		}
	}
}

type pendingChange struct {
	action Action
	at     time.Time
}

// due returns the pending paths that have been quiet for at least d, sorted.
func due(pending map[string]pendingChange, now time.Time, d time.Duration) []string {
	var paths []string
	for path, c := range pending {
		if now.Sub(c.at) >= d {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

func (w *Watcher) apply(ctx context.Context, path string, action Action) {
	name := filepath.Base(path)

	switch action {
	case ActionIngest:
		// The file may have disappeared again during the quiet period.
		if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
			w.log.Debug("Skipping %s: gone or empty", name)
			break
		}
		n, err := w.ingestion.IngestFile(ctx, path, domain.IngestOptions{})
		if err != nil {
			w.log.Error("Failed to ingest %s: %v", name, err)
			break
		}
		if n > 0 {
			w.log.Info("Updated %s: %d chunks", name, n)
		}

	case ActionRemove:
		err := w.ingestion.RemoveFile(ctx, path)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			w.log.Debug("Removed %s was not in the collection", name)
		case err != nil:
			w.log.Error("Failed to remove %s: %v", name, err)
		default:
			w.log.Info("Removed %s from the collection", name)
		}
	}

	if w.processed != nil {
		w.processed <- path
	}
}

// classify maps an event to an action, or 0 when the event is ignored.
// Only visible .pdf files directly in the folder are considered.
func classify(event fsnotify.Event) Action {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || !strings.EqualFold(filepath.Ext(base), ".pdf") {
		return 0
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return ActionRemove
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			return 0
		}
		return ActionIngest
	default:
		return 0
	}
}
