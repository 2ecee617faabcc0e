package store

import (
	"encoding/json"
	"fmt"
)

const (
	DefaultDimension = 512
	DefaultTopK      = 3
)

// Character is a catalog record with its embedding removed. Values are kept
// as raw JSON so fields the loader does not know about pass through untouched.
type Character map[string]json.RawMessage

// ID returns the record id as written in the catalog, or "" when absent.
func (c Character) ID() string {
	raw, ok := c["id"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Name returns the record name, or "" when absent or not a string.
func (c Character) Name() string {
	var s string
	if raw, ok := c["name"]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// Catalog is an immutable set of L2-normalized reference embeddings. Row i of
// the matrix belongs to character i; row order decides ties.
type Catalog struct {
	dim        int
	rows       int
	data       []float32 // row-major rows*dim
	characters []Character

	checksum string
	source   string
}

func newCatalog(dim int, data []float32, characters []Character, checksum, source string) (*Catalog, error) {
	if len(characters) == 0 {
		return nil, ErrEmptyCatalog
	}
	if len(data) != len(characters)*dim {
		return nil, fmt.Errorf("catalog matrix holds %d values, want %d", len(data), len(characters)*dim)
	}
	return &Catalog{
		dim:        dim,
		rows:       len(characters),
		data:       data,
		characters: characters,
		checksum:   checksum,
		source:     source,
	}, nil
}

// Len returns the number of rows.
func (c *Catalog) Len() int { return c.rows }

// Dim returns the embedding dimension.
func (c *Catalog) Dim() int { return c.dim }

// Checksum is the hex SHA-256 of the bytes the catalog was decoded from.
func (c *Catalog) Checksum() string { return c.checksum }

// Source describes where the catalog was loaded from.
func (c *Catalog) Source() string { return c.source }

// Row returns a copy of normalized row i.
func (c *Catalog) Row(i int) []float32 {
	out := make([]float32, c.dim)
	copy(out, c.row(i))
	return out
}

func (c *Catalog) row(i int) []float32 {
	start := i * c.dim
	return c.data[start : start+c.dim : start+c.dim]
}

// Character returns the metadata for row i.
func (c *Catalog) Character(i int) Character { return c.characters[i] }

// Find returns the row and metadata of the first character whose id equals id.
func (c *Catalog) Find(id string) (int, Character, bool) {
	for i, ch := range c.characters {
		if ch.ID() == id {
			return i, ch, true
		}
	}
	return -1, nil, false
}
