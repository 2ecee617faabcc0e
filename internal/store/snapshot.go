package store

import (
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	snapshotVersion = 1

	// SnapshotExt marks catalog locations holding a gob snapshot.
	SnapshotExt = ".gob"
)

// Snapshot is the gob form of a normalized catalog.
type Snapshot struct {
	Version    int
	Dim        int
	Data       []float32
	Characters []map[string][]byte
	Checksum   string
	Source     string
}

// WriteSnapshot encodes c to w.
func (c *Catalog) WriteSnapshot(w io.Writer) error {
	snap := Snapshot{
		Version:    snapshotVersion,
		Dim:        c.dim,
		Data:       c.data,
		Characters: make([]map[string][]byte, len(c.characters)),
		Checksum:   c.checksum,
		Source:     c.source,
	}
	for i, ch := range c.characters {
		fields := make(map[string][]byte, len(ch))
		for k, v := range ch {
			fields[k] = v
		}
		snap.Characters[i] = fields
	}
	return gob.NewEncoder(w).Encode(snap)
}

// ReadSnapshot decodes a catalog written by WriteSnapshot and checks that
// every row is still unit length.
func ReadSnapshot(r io.Reader) (*Catalog, error) {
	var snap Snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if snap.Dim <= 0 {
		return nil, fmt.Errorf("snapshot dimension %d is invalid", snap.Dim)
	}

	characters := make([]Character, len(snap.Characters))
	for i, fields := range snap.Characters {
		ch := make(Character, len(fields))
		for k, v := range fields {
			ch[k] = v
		}
		characters[i] = ch
	}

	cat, err := newCatalog(snap.Dim, snap.Data, characters, snap.Checksum, snap.Source)
	if err != nil {
		return nil, err
	}
	for i := 0; i < cat.rows; i++ {
		if n := l2Norm(cat.row(i)); math.Abs(n-1) > 1e-5 && n > normEpsilon {
			return nil, &SchemaError{Index: i, Reason: fmt.Sprintf("snapshot row norm %f is not 1", n)}
		}
	}
	return cat, nil
}

// SaveSnapshot writes c to path.
func (c *Catalog) SaveSnapshot(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.WriteSnapshot(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
