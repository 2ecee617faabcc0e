package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rupamthxt/lookalike/internal/cluster"
	"github.com/rupamthxt/lookalike/internal/config"
	vectorHttp "github.com/rupamthxt/lookalike/internal/http"
	"github.com/rupamthxt/lookalike/internal/logging"
	"github.com/rupamthxt/lookalike/internal/store"
)

// Join retry backoff bounds. Tests shorten them.
var (
	joinBackoff    = time.Second
	joinMaxBackoff = 15 * time.Second
)

func startCluster(ctx context.Context, cfg *config.Config, engine *store.Engine, resolve cluster.SourceResolver, log *logging.Logger) (*cluster.RaftNode, error) {
	clog := log.With("component", "raft", "node_id", cfg.Cluster.NodeID)

	fsm := cluster.NewFSM(engine, cfg.Matching.ExpectedDimension, resolve, reloadObserver(ctx, clog, "raft"))
	node, err := cluster.NewRaftNode(cluster.NodeConfig{
		NodeID:    cfg.Cluster.NodeID,
		RaftAddr:  cfg.Cluster.RaftAddr,
		DataDir:   cfg.Cluster.DataDir,
		Bootstrap: cfg.Cluster.Bootstrap,
		Timeout:   cfg.Cluster.Timeout,
	}, fsm)
	if err != nil {
		return nil, err
	}
	go node.TrackState(ctx)
	clog.Info("raft node started", "raft_addr", cfg.Cluster.RaftAddr, "bootstrap", cfg.Cluster.Bootstrap)

	if cfg.Cluster.Join != "" {
		go func() {
			err := joinCluster(ctx, cfg.Cluster.Join, cfg.Server.AdminToken, cfg.Cluster.NodeID, cfg.Cluster.RaftAddr, clog)
			if err != nil {
				clog.Error("cluster join gave up", "member", cfg.Cluster.Join, "error", err)
				return
			}
			clog.Info("joined cluster", "member", cfg.Cluster.Join)
		}()
	}
	return node, nil
}

// joinStatusError is a non-2xx answer from the member asked to add us.
type joinStatusError struct {
	status int
	body   string
}

func (e *joinStatusError) Error() string {
	return fmt.Sprintf("join refused with status %d: %s", e.status, strings.TrimSpace(e.body))
}

// retryable reports whether asking again may succeed. 409 means the member
// is not the leader yet; 5xx covers elections and restarts.
func (e *joinStatusError) retryable() bool {
	return e.status == http.StatusConflict || e.status >= 500
}

// joinCluster asks member to add this node as a voter, retrying with
// exponential backoff until it succeeds, a permanent refusal comes back or
// ctx is done.
func joinCluster(ctx context.Context, member, token, nodeID, raftAddr string, log *logging.Logger) error {
	body, err := json.Marshal(vectorHttp.JoinRequest{NodeID: nodeID, RaftAddr: raftAddr})
	if err != nil {
		return err
	}
	url := strings.TrimSuffix(member, "/") + "/admin/join"
	client := &http.Client{Timeout: 5 * time.Second}

	backoff := joinBackoff
	for attempt := 1; ; attempt++ {
		err := postJoin(ctx, client, url, token, body)
		if err == nil {
			return nil
		}
		var statusErr *joinStatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return err
		}
		log.Warn("cluster join failed, retrying", "member", member, "attempt", attempt, "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, joinMaxBackoff)
	}
}

func postJoin(ctx context.Context, client *http.Client, url, token string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &joinStatusError{status: resp.StatusCode, body: string(msg)}
	}
	return nil
}

// replicator is the part of cluster.RaftNode the admin reload path needs.
type replicator interface {
	Reload(location, checksum string) (cluster.ApplyResult, error)
	Leader() string
}

type raftReloader struct {
	node replicator
	pin  sourcePin
}

func (r *raftReloader) Reload(_ context.Context, location, checksum string) (int, string, error) {
	location, err := r.pin.resolve(location)
	if err != nil {
		return 0, "", err
	}
	res, err := r.node.Reload(location, checksum)
	if errors.Is(err, cluster.ErrNotLeader) {
		if leader := r.node.Leader(); leader != "" {
			return 0, "", fmt.Errorf("%w, leader raft address is %s", err, leader)
		}
		return 0, "", err
	}
	if err != nil {
		return 0, "", err
	}
	return res.Rows, res.Checksum, nil
}
