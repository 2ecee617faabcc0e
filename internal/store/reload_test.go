package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prototypes.json")
	require.NoError(t, os.WriteFile(path, []byte(catalogJSON(t, []float32{1, 0})), 0o644))

	engine := mustEngine(t, mustLoad(t, 2, []float32{0, 1}, []float32{1, 1}), MatchOptions{})
	original := engine.Catalog()

	t.Run("ChecksumMismatchKeepsCatalog", func(t *testing.T) {
		_, err := Reload(context.Background(), engine, FileSource{Path: path}, 2, "deadbeef")
		assert.ErrorIs(t, err, ErrChecksumMismatch)
		assert.True(t, IsLoadError(err))
		assert.Same(t, original, engine.Catalog())
	})

	t.Run("InvalidCatalogKeepsCatalog", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`[]`), 0o644))
		_, err := Reload(context.Background(), engine, FileSource{Path: bad}, 2, "")
		assert.ErrorIs(t, err, ErrEmptyCatalog)
		assert.Same(t, original, engine.Catalog())
	})

	t.Run("Success", func(t *testing.T) {
		cat, err := Reload(context.Background(), engine, FileSource{Path: path}, 2, "")
		require.NoError(t, err)
		assert.Same(t, cat, engine.Catalog())
		assert.Equal(t, 1, engine.Catalog().Len())
	})
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prototypes.json")
	require.NoError(t, os.WriteFile(path, []byte(catalogJSON(t, []float32{1, 0})), 0o644))

	engine := mustEngine(t, mustLoad(t, 2, []float32{1, 0}), MatchOptions{})

	var mu sync.Mutex
	var reloads []error
	w := NewWatcher(path, 2, engine, func(_ *Catalog, err error) {
		mu.Lock()
		defer mu.Unlock()
		reloads = append(reloads, err)
	})
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(catalogJSON(t, []float32{1, 0}, []float32{0, 1}, []float32{1, 1})), 0o644))

	require.Eventually(t, func() bool {
		return engine.Catalog().Len() == 3
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, reloads)
	assert.NoError(t, reloads[len(reloads)-1])
}
