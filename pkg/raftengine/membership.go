package raftengine

import (
	"sync"

	"github.com/cuemby/raftkv/pkg/rpc"
)

// NodeAddress is a node's two listen endpoints: the KV RPC address clients
// dial for Get/Put/Delete, and the Raft RPC address peers dial for
// AppendEntries/RequestVote/InstallSnapshot.
type NodeAddress struct {
	KVAddress   string
	RaftAddress string
}

func (a NodeAddress) toWire() rpc.NodeAddressWire {
	return rpc.NodeAddressWire{KVAddress: a.KVAddress, RaftAddress: a.RaftAddress}
}

func fromWire(w rpc.NodeAddressWire) NodeAddress {
	return NodeAddress{KVAddress: w.KVAddress, RaftAddress: w.RaftAddress}
}

// MembershipMap is the authoritative nodeId -> NodeAddress directory. It is
// mutated only by applied membership log entries and copied into every RPC
// reply.
type MembershipMap struct {
	mu    sync.RWMutex
	nodes map[uint64]NodeAddress
}

func newMembershipMap() *MembershipMap {
	return &MembershipMap{nodes: make(map[uint64]NodeAddress)}
}

func (m *MembershipMap) set(id uint64, addr NodeAddress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[id] = addr
}

func (m *MembershipMap) remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, id)
}

// Snapshot returns a copy of the current membership map, safe to hand to a
// caller outside the engine.
func (m *MembershipMap) Snapshot() map[uint64]NodeAddress {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uint64]NodeAddress, len(m.nodes))
	for id, addr := range m.nodes {
		out[id] = addr
	}
	return out
}

// SnapshotWire is Snapshot encoded for the wire.
func (m *MembershipMap) SnapshotWire() map[uint64]rpc.NodeAddressWire {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uint64]rpc.NodeAddressWire, len(m.nodes))
	for id, addr := range m.nodes {
		out[id] = addr.toWire()
	}
	return out
}

func (m *MembershipMap) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}
