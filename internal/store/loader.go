package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const embeddingField = "embedding"

// Load decodes a JSON list of prototype records into a Catalog. Every record
// must carry an embedding of exactly dim numbers; dim <= 0 means
// DefaultDimension. Gzip and zstd input is decompressed transparently.
func Load(r io.Reader, dim int) (*Catalog, error) {
	return load(r, dim, "")
}

// LoadSource opens src and loads the catalog it holds. Locations ending in
// SnapshotExt are read as gob snapshots written by Catalog.SaveSnapshot.
func LoadSource(ctx context.Context, src Source, dim int) (*Catalog, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", src, err)
	}
	defer rc.Close()

	if strings.HasSuffix(src.String(), SnapshotExt) {
		cat, err := ReadSnapshot(rc)
		if err != nil {
			return nil, err
		}
		if dim > 0 && cat.Dim() != dim {
			return nil, &SchemaError{Index: -1, Reason: fmt.Sprintf("snapshot dimension %d, want %d", cat.Dim(), dim)}
		}
		return cat, nil
	}
	return load(rc, dim, src.String())
}

func load(r io.Reader, dim int, source string) (*Catalog, error) {
	if dim <= 0 {
		dim = DefaultDimension
	}

	plain, err := decompress(r)
	if err != nil {
		return nil, fmt.Errorf("decompress catalog: %w", err)
	}
	defer plain.Close()

	raw, err := io.ReadAll(plain)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return decodeCatalog(raw, dim, source)
}

func decodeCatalog(raw []byte, dim int, source string) (*Catalog, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyCatalog
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &SchemaError{Index: -1, Reason: "document is not a list of records"}
	}
	if len(records) == 0 {
		return nil, ErrEmptyCatalog
	}

	data := make([]float32, len(records)*dim)
	characters := make([]Character, len(records))

	for i, rec := range records {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(rec, &fields); err != nil || fields == nil {
			return nil, &SchemaError{Index: i, Reason: "record is not an object"}
		}

		embedding, err := parseEmbedding(fields[embeddingField])
		if err != nil {
			return nil, &SchemaError{Index: i, Reason: err.Error()}
		}
		if len(embedding) != dim {
			return nil, &SchemaError{
				Index:  i,
				Reason: fmt.Sprintf("embedding has %d components, want %d", len(embedding), dim),
			}
		}

		start := i * dim
		normalizeInto(data[start:start+dim], embedding)

		delete(fields, embeddingField)
		characters[i] = Character(fields)
	}

	sum := sha256.Sum256(raw)
	return newCatalog(dim, data, characters, hex.EncodeToString(sum[:]), source)
}

func parseEmbedding(raw json.RawMessage) ([]float32, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("missing %s", embeddingField)
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, fmt.Errorf("%s is not a flat numeric sequence", embeddingField)
	}
	return vec, nil
}

// ParseQuery decodes a JSON query vector, rejecting anything but a flat
// array of numbers with ErrInvalidQueryShape.
func ParseQuery(raw json.RawMessage) ([]float32, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrInvalidQueryShape
	}
	var vec []float32
	if err := json.Unmarshal(trimmed, &vec); err != nil {
		return nil, ErrInvalidQueryShape
	}
	return vec, nil
}
