package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	cat := mustLoad(t, 3, []float32{1, 2, 3}, []float32{0, 0, 1}, []float32{-4, 1, 0})

	var buf bytes.Buffer
	require.NoError(t, cat.WriteSnapshot(&buf))

	restored, err := ReadSnapshot(&buf)
	require.NoError(t, err)

	assert.Equal(t, cat.Len(), restored.Len())
	assert.Equal(t, cat.Dim(), restored.Dim())
	assert.Equal(t, cat.Checksum(), restored.Checksum())
	for i := 0; i < cat.Len(); i++ {
		assert.Equal(t, cat.Row(i), restored.Row(i))
		assert.Equal(t, cat.Character(i).ID(), restored.Character(i).ID())
	}
}

func TestSnapshotAsCatalogSource(t *testing.T) {
	cat := mustLoad(t, 2, []float32{1, 0}, []float32{0, 1})
	path := filepath.Join(t.TempDir(), "catalog"+SnapshotExt)
	require.NoError(t, cat.SaveSnapshot(path))

	loaded, err := LoadSource(context.Background(), FileSource{Path: path}, 2)
	require.NoError(t, err)
	assert.Equal(t, cat.Checksum(), loaded.Checksum())

	_, err = LoadSource(context.Background(), FileSource{Path: path}, 3)
	var schemaErr *SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestReadSnapshotRejectsGarbage(t *testing.T) {
	_, err := ReadSnapshot(bytes.NewReader([]byte("not a gob stream")))
	assert.Error(t, err)
}
