package store

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// catalogJSON renders records with ids 1..n and the given embeddings.
func catalogJSON(t *testing.T, embeddings ...[]float32) string {
	t.Helper()
	records := make([]map[string]any, len(embeddings))
	for i, e := range embeddings {
		records[i] = map[string]any{
			"id":            i + 1,
			"name":          "character-" + string(rune('a'+i)),
			"portrait_path": "/character/x.webp",
			"embedding":     e,
		}
	}
	raw, err := json.Marshal(records)
	require.NoError(t, err)
	return string(raw)
}

func mustLoad(t *testing.T, dim int, embeddings ...[]float32) *Catalog {
	t.Helper()
	cat, err := Load(strings.NewReader(catalogJSON(t, embeddings...)), dim)
	require.NoError(t, err)
	return cat
}

func mustEngine(t *testing.T, cat *Catalog, defaults MatchOptions) *Engine {
	t.Helper()
	e, err := NewEngine(cat, defaults)
	require.NoError(t, err)
	return e
}

func ptr[T any](v T) *T { return &v }
