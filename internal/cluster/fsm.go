package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hashicorp/raft"
	"github.com/rupamthxt/lookalike/internal/store"
)

const OpReload = "reload"

// Command is what we replicate across the network.
type Command struct {
	Op       string `json:"op"`
	Source   string `json:"source"`
	Checksum string `json:"checksum,omitempty"`
}

// ApplyResult is returned from FSM.Apply for a successful reload.
type ApplyResult struct {
	Rows     int
	Checksum string
}

// SourceResolver turns a catalog location from a command into a Source.
type SourceResolver func(ctx context.Context, location string) (store.Source, error)

// FSM applies replicated catalog reloads to the local engine so every
// replica serves the same catalog.
type FSM struct {
	engine   *store.Engine
	dim      int
	resolve  SourceResolver
	onReload func(*store.Catalog, error)
}

func NewFSM(engine *store.Engine, dim int, resolve SourceResolver, onReload func(*store.Catalog, error)) *FSM {
	return &FSM{engine: engine, dim: dim, resolve: resolve, onReload: onReload}
}

func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal command: %w", err)
	}

	switch cmd.Op {
	case OpReload:
		cat, err := f.reload(cmd)
		if f.onReload != nil {
			f.onReload(cat, err)
		}
		if err != nil {
			return err
		}
		return ApplyResult{Rows: cat.Len(), Checksum: cat.Checksum()}
	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

func (f *FSM) reload(cmd Command) (*store.Catalog, error) {
	ctx := context.Background()
	src, err := f.resolve(ctx, cmd.Source)
	if err != nil {
		return nil, err
	}
	return store.Reload(ctx, f.engine, src, f.dim, cmd.Checksum)
}

// Snapshot captures the catalog currently served. The catalog is immutable,
// so holding the pointer is enough.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	return &catalogSnapshot{catalog: f.engine.Catalog()}, nil
}

func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	cat, err := store.ReadSnapshot(rc)
	if err != nil {
		return fmt.Errorf("restore catalog: %w", err)
	}
	if _, err := f.engine.Swap(cat); err != nil {
		return err
	}
	if f.onReload != nil {
		f.onReload(cat, nil)
	}
	return nil
}

type catalogSnapshot struct {
	catalog *store.Catalog
}

func (s *catalogSnapshot) Persist(sink raft.SnapshotSink) error {
	if err := s.catalog.WriteSnapshot(sink); err != nil {
		_ = sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *catalogSnapshot) Release() {}
