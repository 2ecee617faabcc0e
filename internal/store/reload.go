package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reload builds a fresh catalog from src and swaps it into e. When checksum
// is non-empty the new catalog must match it. On any failure e keeps serving
// its current catalog.
func Reload(ctx context.Context, e *Engine, src Source, dim int, checksum string) (*Catalog, error) {
	cat, err := LoadSource(ctx, src, dim)
	if err != nil {
		return nil, err
	}
	if checksum != "" && cat.Checksum() != checksum {
		return nil, fmt.Errorf("%w: %s has %s, want %s", ErrChecksumMismatch, src, cat.Checksum(), checksum)
	}
	if _, err := e.Swap(cat); err != nil {
		return nil, err
	}
	return cat, nil
}

const DefaultWatchDebounce = 500 * time.Millisecond

// Watcher reloads a file-backed catalog whenever the file changes.
type Watcher struct {
	path     string
	dim      int
	engine   *Engine
	debounce time.Duration
	onReload func(*Catalog, error)
}

// NewWatcher returns a watcher for path. onReload, if not nil, is called after
// every reload attempt with the new catalog or the error that kept the old one.
func NewWatcher(path string, dim int, engine *Engine, onReload func(*Catalog, error)) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		dim:      dim,
		engine:   engine,
		debounce: DefaultWatchDebounce,
		onReload: onReload,
	}
}

// Run watches until ctx is done. The parent directory is watched so that
// editors and deploy tools replacing the file by rename are picked up too.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.notify(nil, fmt.Errorf("watch %s: %w", w.path, err))
		case <-timer.C:
			cat, err := Reload(ctx, w.engine, FileSource{Path: w.path}, w.dim, "")
			w.notify(cat, err)
		}
	}
}

func (w *Watcher) notify(cat *Catalog, err error) {
	if w.onReload != nil {
		w.onReload(cat, err)
	}
}
