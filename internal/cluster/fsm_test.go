package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/raft"
	"github.com/rupamthxt/lookalike/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	bytes.Buffer
	closed, canceled bool
}

func (s *memorySink) ID() string    { return "test" }
func (s *memorySink) Close() error  { s.closed = true; return nil }
func (s *memorySink) Cancel() error { s.canceled = true; return nil }

func fileResolver(_ context.Context, location string) (store.Source, error) {
	return store.FileSource{Path: location}, nil
}

func newTestFSM(t *testing.T) (*FSM, *store.Engine, *[]error) {
	t.Helper()
	cat, err := store.Load(strings.NewReader(`[{"id": 1, "embedding": [1, 0]}]`), 2)
	require.NoError(t, err)
	engine, err := store.NewEngine(cat, store.MatchOptions{})
	require.NoError(t, err)

	var seen []error
	fsm := NewFSM(engine, 2, fileResolver, func(_ *store.Catalog, err error) {
		seen = append(seen, err)
	})
	return fsm, engine, &seen
}

func applyCommand(t *testing.T, fsm *FSM, cmd Command) interface{} {
	t.Helper()
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	return fsm.Apply(&raft.Log{Data: data})
}

func TestFSMApplyReload(t *testing.T) {
	fsm, engine, seen := newTestFSM(t)

	path := filepath.Join(t.TempDir(), "prototypes.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 1, "embedding": [1, 0]}, {"id": 2, "embedding": [0, 1]}]`), 0o644))

	resp := applyCommand(t, fsm, Command{Op: OpReload, Source: path})
	result, ok := resp.(ApplyResult)
	require.True(t, ok, "got %#v", resp)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, engine.Catalog().Checksum(), result.Checksum)
	assert.Equal(t, 2, engine.Catalog().Len())
	assert.Equal(t, []error{nil}, *seen)

	// Replaying the same command with its checksum is accepted.
	resp = applyCommand(t, fsm, Command{Op: OpReload, Source: path, Checksum: result.Checksum})
	assert.IsType(t, ApplyResult{}, resp)
}

func TestFSMApplyFailuresKeepCatalog(t *testing.T) {
	fsm, engine, seen := newTestFSM(t)
	before := engine.Catalog()

	path := filepath.Join(t.TempDir(), "prototypes.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 1, "embedding": [1, 0, 0]}]`), 0o644))

	resp := applyCommand(t, fsm, Command{Op: OpReload, Source: path})
	err, ok := resp.(error)
	require.True(t, ok)
	assert.True(t, store.IsLoadError(err))

	resp = applyCommand(t, fsm, Command{Op: "delete"})
	assert.ErrorContains(t, resp.(error), "unknown command")

	resp = fsm.Apply(&raft.Log{Data: []byte("{")})
	assert.ErrorContains(t, resp.(error), "unmarshal")

	assert.Same(t, before, engine.Catalog())
	require.Len(t, *seen, 1)
	assert.Error(t, (*seen)[0])
}

func TestFSMSnapshotRestore(t *testing.T) {
	fsm, engine, _ := newTestFSM(t)

	snap, err := fsm.Snapshot()
	require.NoError(t, err)
	sink := &memorySink{}
	require.NoError(t, snap.Persist(sink))
	snap.Release()
	assert.True(t, sink.closed)
	assert.False(t, sink.canceled)

	other, otherEngine, seen := newTestFSM(t)
	replacement, err := store.Load(strings.NewReader(`[{"id": 5, "embedding": [0, 1]}, {"id": 6, "embedding": [1, 1]}]`), 2)
	require.NoError(t, err)
	_, err = otherEngine.Swap(replacement)
	require.NoError(t, err)

	require.NoError(t, other.Restore(io.NopCloser(bytes.NewReader(sink.Bytes()))))
	assert.Equal(t, engine.Catalog().Checksum(), otherEngine.Catalog().Checksum())
	assert.Equal(t, 1, otherEngine.Catalog().Len())
	assert.Equal(t, []error{nil}, *seen)

	assert.Error(t, other.Restore(io.NopCloser(strings.NewReader("garbage"))))
}
