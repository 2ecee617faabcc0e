package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
	"github.com/rupamthxt/lookalike/internal/metrics"
)

const (
	RaftTimeout = 10 * time.Second
)

// ErrNotLeader is returned when a reload is proposed on a follower.
var ErrNotLeader = errors.New("not the raft leader")

type NodeConfig struct {
	NodeID    string
	RaftAddr  string
	DataDir   string
	Bootstrap bool
	Timeout   time.Duration
	LogOutput io.Writer
}

type RaftNode struct {
	Raft    *raft.Raft
	FSM     *FSM
	timeout time.Duration

	stores []*raftboltdb.BoltStore
}

func NewRaftNode(cfg NodeConfig, fsm *FSM) (*RaftNode, error) {
	if cfg.LogOutput == nil {
		cfg.LogOutput = os.Stderr
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = RaftTimeout
	}

	raftDir := filepath.Join(cfg.DataDir, cfg.NodeID)
	if err := os.MkdirAll(raftDir, 0755); err != nil {
		return nil, err
	}

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(cfg.NodeID)
	config.LogOutput = cfg.LogOutput

	tcpAddr, err := net.ResolveTCPAddr("tcp", cfg.RaftAddr)
	if err != nil {
		return nil, err
	}
	transport, err := raft.NewTCPTransport(cfg.RaftAddr, tcpAddr, 3, 10*time.Second, cfg.LogOutput)
	if err != nil {
		return nil, err
	}
	opened := []io.Closer{transport}
	fail := func(err error) (*RaftNode, error) {
		closeAll(opened)
		return nil, err
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(raftDir, "logs.dat"))
	if err != nil {
		return fail(err)
	}
	opened = append(opened, logStore)

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(raftDir, "stable.dat"))
	if err != nil {
		return fail(err)
	}
	opened = append(opened, stableStore)

	snapshotStore, err := raft.NewFileSnapshotStore(raftDir, 1, cfg.LogOutput)
	if err != nil {
		return fail(err)
	}

	r, err := raft.NewRaft(config, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return fail(err)
	}

	if cfg.Bootstrap {
		boot := raft.Configuration{
			Servers: []raft.Server{
				{
					ID:      config.LocalID,
					Address: transport.LocalAddr(),
				},
			},
		}
		if err := r.BootstrapCluster(boot).Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
			// Shutdown also closes the transport.
			_ = r.Shutdown().Error()
			return fail(fmt.Errorf("bootstrap cluster: %w", err))
		}
	}

	return &RaftNode{
		Raft:    r,
		FSM:     fsm,
		timeout: cfg.Timeout,
		stores:  []*raftboltdb.BoltStore{logStore, stableStore},
	}, nil
}

// Reload replicates a catalog reload to every node. Only the leader may
// propose; the call returns once the local FSM has applied it.
func (rn *RaftNode) Reload(location, checksum string) (ApplyResult, error) {
	if rn.Raft.State() != raft.Leader {
		return ApplyResult{}, ErrNotLeader
	}

	b, err := json.Marshal(Command{Op: OpReload, Source: location, Checksum: checksum})
	if err != nil {
		return ApplyResult{}, err
	}

	future := rn.Raft.Apply(b, rn.timeout)
	if err := future.Error(); err != nil {
		return ApplyResult{}, err
	}

	switch resp := future.Response().(type) {
	case error:
		return ApplyResult{}, resp
	case ApplyResult:
		return resp, nil
	default:
		return ApplyResult{}, fmt.Errorf("unexpected apply response %T", resp)
	}
}

// Join adds a voter to the cluster. Must be called on the leader.
func (rn *RaftNode) Join(nodeID, addr string) error {
	if rn.Raft.State() != raft.Leader {
		return ErrNotLeader
	}
	return rn.Raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, rn.timeout).Error()
}

// Leader returns the raft address of the current leader, or "" when none
// is known.
func (rn *RaftNode) Leader() string {
	addr, _ := rn.Raft.LeaderWithID()
	return string(addr)
}

// TrackState mirrors the raft state into the metrics gauge until ctx is done.
func (rn *RaftNode) TrackState(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		metrics.RaftState.Set(float64(rn.Raft.State()))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (rn *RaftNode) Shutdown() error {
	err := rn.Raft.Shutdown().Error()
	for _, s := range rn.stores {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		_ = closers[i].Close()
	}
}
