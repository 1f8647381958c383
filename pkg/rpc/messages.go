package rpc

// State is the outcome of a KV or admin RPC. Wire-compatible with the
// four-value enum in docs/kv.proto.
type State int32

const (
	StateOK          State = 0
	StateNotFound    State = 1
	StateWrongLeader State = 2
	StateIOError     State = 3
)

func (s State) String() string {
	switch s {
	case StateOK:
		return "OK"
	case StateNotFound:
		return "NOT_FOUND"
	case StateWrongLeader:
		return "WRONG_LEADER"
	case StateIOError:
		return "IO_ERROR"
	default:
		return "UNKNOWN"
	}
}

// ChangeType selects the kind of membership mutation a ConfChange performs.
type ChangeType int32

const (
	AddNode    ChangeType = 0
	RemoveNode ChangeType = 1
)

// NodeAddressWire is the wire form of a cluster node's two listen addresses.
type NodeAddressWire struct {
	KVAddress   string `json:"kv_address,omitempty"`
	RaftAddress string `json:"raft_address,omitempty"`
}

// GetRequest carries a read-only lookup.
type GetRequest struct {
	Key []byte `json:"key,omitempty"`
}

// GetReply carries the outcome of a Get, plus the replying node's current
// view of cluster membership and leadership.
type GetReply struct {
	State      State                      `json:"state"`
	Value      []byte                     `json:"value,omitempty"`
	LeaderID   uint64                     `json:"leader_id"`
	AddressMap map[uint64]NodeAddressWire `json:"address_map,omitempty"`
}

// PutRequest carries a key/value write.
type PutRequest struct {
	Key   []byte `json:"key,omitempty"`
	Value []byte `json:"value,omitempty"`
}

// PutReply carries the outcome of a Put.
type PutReply struct {
	State      State                      `json:"state"`
	LeaderID   uint64                     `json:"leader_id"`
	AddressMap map[uint64]NodeAddressWire `json:"address_map,omitempty"`
}

// DeleteRequest carries a key deletion.
type DeleteRequest struct {
	Key []byte `json:"key,omitempty"`
}

// DeleteReply carries the outcome of a Delete.
type DeleteReply struct {
	State      State                      `json:"state"`
	LeaderID   uint64                     `json:"leader_id"`
	AddressMap map[uint64]NodeAddressWire `json:"address_map,omitempty"`
}

// StatusRequest is empty; Status always returns the current view.
type StatusRequest struct{}

// StatusReply reports the current leader and membership as known to the
// node that served the request.
type StatusReply struct {
	LeaderID   uint64                     `json:"leader_id"`
	AddressMap map[uint64]NodeAddressWire `json:"address_map,omitempty"`
	State      State                      `json:"state"`
}

// ConfChangeRequest proposes a membership mutation. Context is the
// serialized NodeAddressWire for AddNode, empty for RemoveNode.
type ConfChangeRequest struct {
	NodeID     uint64     `json:"node_id"`
	ChangeType ChangeType `json:"change_type"`
	Context    []byte     `json:"context,omitempty"`
}

// ChangeReply carries the outcome of a ConfChange.
type ChangeReply struct {
	LeaderID   uint64                     `json:"leader_id"`
	AddressMap map[uint64]NodeAddressWire `json:"address_map,omitempty"`
	State      State                      `json:"state"`
}
