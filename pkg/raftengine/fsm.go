package raftengine

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cuemby/raftkv/pkg/kvstore"
	"github.com/cuemby/raftkv/pkg/log"
	"github.com/hashicorp/raft"
)

// applyRequest is handed from the FSM to the apply worker over applyCh. The
// FSM blocks on resp so that raft.ApplyFuture.Error() does not resolve
// until the mutation has actually landed in the KV engine — this is what
// gives read-your-writes on the leader (spec.md's ordering guarantee).
type applyRequest struct {
	op   Op
	resp chan error
}

// stateMachine implements raft.FSM. Normal log entries carrying put/delete
// are forwarded to the apply worker; membership entries are applied
// in-place since they only ever touch the in-memory MembershipMap.
type stateMachine struct {
	store      *kvstore.Store
	membership *MembershipMap
	applyCh    chan *applyRequest
}

func newStateMachine(store *kvstore.Store, membership *MembershipMap, applyCh chan *applyRequest) *stateMachine {
	return &stateMachine{store: store, membership: membership, applyCh: applyCh}
}

// Apply is invoked once per committed log entry, strictly in index order.
func (f *stateMachine) Apply(l *raft.Log) interface{} {
	var cmd command
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		return fmt.Errorf("raftengine: unmarshal command at index %d: %w", l.Index, err)
	}

	switch cmd.Op {
	case opPut:
		var d putData
		if err := json.Unmarshal(cmd.Data, &d); err != nil {
			return err
		}
		return f.forwardToApplyWorker(Op{Kind: opPut, Key: d.Key, Value: d.Value, Seq: d.Seq})

	case opDelete:
		var d deleteData
		if err := json.Unmarshal(cmd.Data, &d); err != nil {
			return err
		}
		return f.forwardToApplyWorker(Op{Kind: opDelete, Key: d.Key, Seq: d.Seq})

	case opAddMember:
		var d addMemberData
		if err := json.Unmarshal(cmd.Data, &d); err != nil {
			return err
		}
		f.membership.set(d.NodeID, NodeAddress{KVAddress: d.KVAddress, RaftAddress: d.RaftAddress})
		return nil

	case opRemoveMember:
		var d removeMemberData
		if err := json.Unmarshal(cmd.Data, &d); err != nil {
			return err
		}
		f.membership.remove(d.NodeID)
		return nil

	default:
		return fmt.Errorf("raftengine: unknown command op %q at index %d", cmd.Op, l.Index)
	}
}

// forwardToApplyWorker hands op to the single apply-worker goroutine and
// waits for it to mutate the KV engine. It never returns until the worker
// acks, even if that means blocking the raft FSM goroutine — this keeps
// applies strictly sequential and gives the leader read-your-writes.
func (f *stateMachine) forwardToApplyWorker(op Op) error {
	req := &applyRequest{op: op, resp: make(chan error, 1)}
	f.applyCh <- req
	return <-req.resp
}

// fsmSnapshot is the point-in-time state handed to raft for persistence.
type fsmSnapshot struct {
	Data       map[string][]byte           `json:"data"`
	Membership map[uint64]NodeAddress      `json:"membership"`
}

// Snapshot captures the full KV engine contents plus the membership map.
func (f *stateMachine) Snapshot() (raft.FSMSnapshot, error) {
	data := make(map[string][]byte)
	if err := f.store.ForEach(func(k, v []byte) error {
		data[string(k)] = v
		return nil
	}); err != nil {
		return nil, fmt.Errorf("raftengine: snapshot store: %w", err)
	}

	return &fsmSnapshot{
		Data:       data,
		Membership: f.membership.Snapshot(),
	}, nil
}

// Restore replaces the KV engine contents and membership map with the
// snapshot's. Called on startup when a node restores from a local snapshot
// or receives one via InstallSnapshot.
func (f *stateMachine) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("raftengine: decode snapshot: %w", err)
	}

	if err := f.store.ReplaceAll(snap.Data); err != nil {
		return fmt.Errorf("raftengine: restore store: %w", err)
	}

	restored := newMembershipMap()
	for id, addr := range snap.Membership {
		restored.set(id, addr)
	}
	f.membership.mu.Lock()
	f.membership.nodes = restored.nodes
	f.membership.mu.Unlock()

	log.Info(fmt.Sprintf("restored snapshot: %d keys, %d members", len(snap.Data), len(snap.Membership)))
	return nil
}

// Persist writes the snapshot as JSON to sink.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release is a noop; the snapshot holds no external resources.
func (s *fsmSnapshot) Release() {}
