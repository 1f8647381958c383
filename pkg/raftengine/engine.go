// Package raftengine is the consensus engine: it owns the replicated log,
// the leader/follower/candidate state, peer transports, and the node
// address directory, and exposes Propose/Read/ChangeConfig/Status to the
// KV service and Raft admin service above it.
//
// The raw consensus primitives (log append, vote RPCs, snapshot plumbing)
// are provided by github.com/hashicorp/raft; this package is the thin
// contract layer spec'd on top of it — the single inbound "command
// channel" described conceptually maps onto raft.Raft's own internal
// serialization, since hashicorp/raft already guarantees that Apply,
// AddVoter, RemoveServer, and leadership queries are safe to call
// concurrently and are processed by its own single-threaded runloop.
package raftengine

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cuemby/raftkv/pkg/kvstore"
	"github.com/cuemby/raftkv/pkg/log"
	"github.com/cuemby/raftkv/pkg/metrics"
	"github.com/cuemby/raftkv/pkg/rpc"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

const (
	applyTimeout      = 5 * time.Second
	confChangeTimeout = 10 * time.Second
)

// Config configures a new Engine.
type Config struct {
	// NodeID is this node's unique nonzero cluster-wide id.
	NodeID uint64
	// RaftAddress is the host:port peers dial for consensus RPCs.
	RaftAddress string
	// KVAddress is the host:port clients dial for KV RPCs; carried in the
	// membership directory but never dialed by this package itself.
	KVAddress string
	// DataDir holds the raft log, stable store, and snapshots.
	DataDir string
	// Bootstrap seeds a brand-new single-node cluster at construction
	// time. A node joining an existing cluster leaves this false and
	// waits for the leader to call AddVoter via ChangeConfig.
	Bootstrap bool
}

// Result is returned by Propose, Read, ChangeConfig, and Status. It mirrors
// spec.md's callback convention (leaderHint == -1 meaning "I am leader")
// as an explicit IsLeader flag plus a best-effort LeaderID hint.
type Result struct {
	IsLeader   bool
	LeaderID   uint64
	Membership map[uint64]NodeAddress
}

// Engine drives Raft-style replication for one node.
type Engine struct {
	nodeID   uint64
	selfAddr NodeAddress

	raft      *raft.Raft
	transport *raft.NetworkTransport
	logStore  *raftboltdb.BoltStore
	stableStore *raftboltdb.BoltStore

	store      *kvstore.Store
	membership *MembershipMap
	applyCh    chan *applyRequest
	worker     *applyWorker

	stopCh chan struct{}
}

// New constructs an Engine backed by store. The caller owns store's
// lifecycle up to Shutdown, which does not close it.
func New(cfg Config, store *kvstore.Store) (*Engine, error) {
	if cfg.NodeID == 0 {
		return nil, fmt.Errorf("raftengine: node id must be nonzero")
	}

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(serverID(cfg.NodeID))

	// Tuned for LAN/edge deployments rather than hashicorp/raft's
	// WAN-conservative defaults, to keep failover well under 10s.
	raftConfig.HeartbeatTimeout = 500 * time.Millisecond
	raftConfig.ElectionTimeout = 500 * time.Millisecond
	raftConfig.CommitTimeout = 50 * time.Millisecond
	raftConfig.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", cfg.RaftAddress)
	if err != nil {
		return nil, fmt.Errorf("raftengine: resolve raft address: %w", err)
	}

	transport, err := raft.NewTCPTransport(cfg.RaftAddress, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftengine: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftengine: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("raftengine: create log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("raftengine: create stable store: %w", err)
	}

	membership := newMembershipMap()
	applyCh := make(chan *applyRequest, 64)
	fsm := newStateMachine(store, membership, applyCh)

	r, err := raft.NewRaft(raftConfig, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("raftengine: create raft: %w", err)
	}

	e := &Engine{
		nodeID:      cfg.NodeID,
		selfAddr:    NodeAddress{KVAddress: cfg.KVAddress, RaftAddress: string(transport.LocalAddr())},
		raft:        r,
		transport:   transport,
		logStore:    logStore,
		stableStore: stableStore,
		store:       store,
		membership:  membership,
		applyCh:     applyCh,
		worker:      newApplyWorker(store, applyCh),
		stopCh:      make(chan struct{}),
	}

	go e.worker.run()

	if cfg.Bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{ID: raftConfig.LocalID, Address: transport.LocalAddr()},
			},
		}
		future := r.BootstrapCluster(configuration)
		if err := future.Error(); err != nil {
			return nil, fmt.Errorf("raftengine: bootstrap cluster: %w", err)
		}
		go e.seedSelfMembership()
	}

	return e, nil
}

// seedSelfMembership waits for this node to become leader after a fresh
// bootstrap, then replicates its own address into the membership map. A
// freshly bootstrapped single-node cluster elects itself leader almost
// immediately; this just can't happen synchronously inside New since
// raft.Apply requires leadership.
func (e *Engine) seedSelfMembership() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if e.raft.State() == raft.Leader {
				if err := e.applyAddMember(e.nodeID, e.selfAddr); err != nil {
					log.Errorf("raftengine: failed to seed self into membership map", err)
				}
				return
			}
		case <-e.stopCh:
			return
		}
	}
}

// NodeID returns this engine's node id.
func (e *Engine) NodeID() uint64 {
	return e.nodeID
}

// SelfAddress returns this node's own KV and Raft addresses, resolved to the
// actually-bound ports (not the possibly-ephemeral ":0" config values).
// Callers join this node into a cluster by sending this back to a leader.
func (e *Engine) SelfAddress() NodeAddress {
	return e.selfAddr
}

// IsLeader reports whether this node currently holds Raft leadership.
func (e *Engine) IsLeader() bool {
	return e.raft.State() == raft.Leader
}

// Propose appends op as a Normal log entry and waits for it to commit
// (and, via the FSM's blocking hand-off to the apply worker, to actually
// apply to the local KV engine before returning).
func (e *Engine) Propose(op Op) (Result, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ProposalCommitDuration)

	if e.raft.State() != raft.Leader {
		return e.notLeaderResult(), ErrNotLeader
	}

	payload, err := op.encode()
	if err != nil {
		return Result{}, fmt.Errorf("raftengine: encode op: %w", err)
	}

	future := e.raft.Apply(payload, applyTimeout)
	if err := future.Error(); err != nil {
		if err == raft.ErrNotLeader || err == raft.ErrLeadershipLost {
			return e.notLeaderResult(), ErrNotLeader
		}
		if err == raft.ErrEnqueueTimeout {
			return Result{}, ErrTimeout
		}
		return Result{}, fmt.Errorf("raftengine: apply: %w", err)
	}

	// A committed proposal whose Op failed to apply at the KV layer is
	// still considered committed; the apply worker already logged the
	// failure and bumped metrics.ApplyErrorsTotal.
	return e.leaderResult(), nil
}

// Read returns the current leader hint and membership snapshot without
// touching the log.
func (e *Engine) Read() Result {
	if e.raft.State() == raft.Leader {
		return e.leaderResult()
	}
	return e.notLeaderResult()
}

// Status is Read under the name the Raft admin RPC uses.
func (e *Engine) Status() Result {
	return e.Read()
}

// ChangeConfig applies a membership mutation. Only the leader may call
// this successfully; followers get ErrNotLeader with a hint.
func (e *Engine) ChangeConfig(nodeID uint64, changeType rpc.ChangeType, addr NodeAddress) (Result, error) {
	if e.raft.State() != raft.Leader {
		return e.notLeaderResult(), ErrNotLeader
	}

	switch changeType {
	case rpc.AddNode:
		voterFuture := e.raft.AddVoter(raft.ServerID(serverID(nodeID)), raft.ServerAddress(addr.RaftAddress), 0, confChangeTimeout)
		if err := voterFuture.Error(); err != nil {
			return Result{}, fmt.Errorf("raftengine: add voter: %w", err)
		}
		if err := e.applyAddMember(nodeID, addr); err != nil {
			return Result{}, fmt.Errorf("raftengine: replicate add member: %w", err)
		}

	case rpc.RemoveNode:
		removeFuture := e.raft.RemoveServer(raft.ServerID(serverID(nodeID)), 0, confChangeTimeout)
		if err := removeFuture.Error(); err != nil {
			return Result{}, fmt.Errorf("raftengine: remove server: %w", err)
		}
		if err := e.applyRemoveMember(nodeID); err != nil {
			return Result{}, fmt.Errorf("raftengine: replicate remove member: %w", err)
		}

	default:
		return Result{}, fmt.Errorf("raftengine: unknown change type %d", changeType)
	}

	return e.leaderResult(), nil
}

func (e *Engine) applyAddMember(nodeID uint64, addr NodeAddress) error {
	data, err := json.Marshal(addMemberData{NodeID: nodeID, KVAddress: addr.KVAddress, RaftAddress: addr.RaftAddress})
	if err != nil {
		return err
	}
	payload, err := json.Marshal(command{Op: opAddMember, Data: data})
	if err != nil {
		return err
	}
	return e.raft.Apply(payload, applyTimeout).Error()
}

func (e *Engine) applyRemoveMember(nodeID uint64) error {
	data, err := json.Marshal(removeMemberData{NodeID: nodeID})
	if err != nil {
		return err
	}
	payload, err := json.Marshal(command{Op: opRemoveMember, Data: data})
	if err != nil {
		return err
	}
	return e.raft.Apply(payload, applyTimeout).Error()
}

func (e *Engine) leaderResult() Result {
	return Result{IsLeader: true, LeaderID: e.nodeID, Membership: e.membership.Snapshot()}
}

func (e *Engine) notLeaderResult() Result {
	return Result{IsLeader: false, LeaderID: e.leaderIDFromRaftAddr(e.raft.Leader()), Membership: e.membership.Snapshot()}
}

// leaderIDFromRaftAddr maps raft's address-based leader identity back to a
// nodeId via the membership map, since hashicorp/raft has no concept of our
// numeric ids. Returns 0 (unknown) if the leader isn't yet reflected in the
// membership map, which the KV service and client both treat as "no hint".
func (e *Engine) leaderIDFromRaftAddr(addr raft.ServerAddress) uint64 {
	if addr == "" {
		return 0
	}
	for id, na := range e.membership.Snapshot() {
		if na.RaftAddress == string(addr) {
			return id
		}
	}
	return 0
}

// Stats exposes a subset of raft's internal counters for the metrics
// collector.
func (e *Engine) Stats() (appliedIndex uint64, peers int) {
	return e.raft.AppliedIndex(), e.membership.len()
}

// Shutdown stops the raft instance and the apply worker. It does not close
// the KV store, which the caller owns.
func (e *Engine) Shutdown() error {
	// raft.Shutdown must complete first: raft.Raft guarantees no further
	// FSM.Apply calls once it returns, and FSM.Apply forwards to the apply
	// worker and blocks on its ack. Stopping the worker before this would
	// leak that goroutine if an Apply were still in flight.
	if err := e.raft.Shutdown().Error(); err != nil {
		return fmt.Errorf("raftengine: shutdown raft: %w", err)
	}

	close(e.stopCh)
	e.worker.stop()

	if err := e.logStore.Close(); err != nil {
		return fmt.Errorf("raftengine: close log store: %w", err)
	}
	if err := e.stableStore.Close(); err != nil {
		return fmt.Errorf("raftengine: close stable store: %w", err)
	}
	return nil
}

func serverID(nodeID uint64) string {
	return strconv.FormatUint(nodeID, 10)
}
