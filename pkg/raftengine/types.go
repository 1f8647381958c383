package raftengine

import (
	"encoding/json"

	"github.com/google/uuid"
)

// opKind tags the committed log entries this engine's FSM understands. put
// and delete carry KV mutations destined for the apply worker; addMember and
// removeMember carry membership-directory updates applied directly by the
// FSM, mirroring the spec's distinction between Normal and ConfChange log
// entries while riding on a single hashicorp/raft log.
type opKind string

const (
	opPut          opKind = "put"
	opDelete       opKind = "delete"
	opAddMember    opKind = "add_member"
	opRemoveMember opKind = "remove_member"
)

// command is the envelope serialized into every raft.Log.Data.
type command struct {
	Op   opKind          `json:"op"`
	Data json.RawMessage `json:"data"`
}

type putData struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
	Seq   string `json:"seq"`
}

type deleteData struct {
	Key []byte `json:"key"`
	Seq string `json:"seq"`
}

type addMemberData struct {
	NodeID      uint64 `json:"node_id"`
	KVAddress   string `json:"kv_address"`
	RaftAddress string `json:"raft_address"`
}

type removeMemberData struct {
	NodeID uint64 `json:"node_id"`
}

// Op is the client-facing mutation the KV service submits to the engine.
// Seq is a unique id stamped on every proposal, reserved for future
// de-duplication of retried writes; the apply worker does not currently
// consult it.
type Op struct {
	Kind  opKind
	Key   []byte
	Value []byte
	Seq   string
}

// PutOp builds an Op representing Put{key, val}.
func PutOp(key, val []byte) Op { return Op{Kind: opPut, Key: key, Value: val, Seq: uuid.NewString()} }

// DeleteOp builds an Op representing Delete{key}.
func DeleteOp(key []byte) Op { return Op{Kind: opDelete, Key: key, Seq: uuid.NewString()} }

func (o Op) encode() ([]byte, error) {
	var data []byte
	var err error
	switch o.Kind {
	case opPut:
		data, err = json.Marshal(putData{Key: o.Key, Value: o.Value, Seq: o.Seq})
	case opDelete:
		data, err = json.Marshal(deleteData{Key: o.Key, Seq: o.Seq})
	default:
		panic("raftengine: unknown op kind " + string(o.Kind))
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(command{Op: o.Kind, Data: data})
}
