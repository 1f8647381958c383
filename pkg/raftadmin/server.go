// Package raftadmin exposes the Raft cluster's Status and ChangeConfig RPCs
// — the surface the client routing cache bootstraps against and the join/
// leave CLI commands drive.
package raftadmin

import (
	"context"
	"errors"

	"github.com/cuemby/raftkv/pkg/log"
	"github.com/cuemby/raftkv/pkg/raftengine"
	"github.com/cuemby/raftkv/pkg/rpc"
)

// Server implements rpc.RaftServiceServer.
type Server struct {
	rpc.UnimplementedRaftServiceServer

	engine *raftengine.Engine
}

// New builds a Server backed by engine.
func New(engine *raftengine.Engine) *Server {
	return &Server{engine: engine}
}

// Status returns the current leader hint and membership snapshot.
func (s *Server) Status(ctx context.Context, _ *rpc.StatusRequest) (*rpc.StatusReply, error) {
	result := s.engine.Status()
	leaderID := result.LeaderID
	if result.IsLeader {
		leaderID = s.engine.NodeID()
	}
	return &rpc.StatusReply{
		LeaderID:   leaderID,
		AddressMap: wireMap(result.Membership),
		State:      rpc.StateOK,
	}, nil
}

// ChangeConfig adds or removes a node from the cluster. Only the leader may
// perform this; followers reply WRONG_LEADER with a hint.
func (s *Server) ChangeConfig(ctx context.Context, req *rpc.ConfChangeRequest) (*rpc.ChangeReply, error) {
	var addr raftengine.NodeAddress
	if req.ChangeType == rpc.AddNode {
		wire, err := decodeAddress(req.Context)
		if err != nil {
			log.Errorf("raftadmin: invalid ConfChange context", err)
			return &rpc.ChangeReply{State: rpc.StateIOError}, nil
		}
		addr = raftengine.NodeAddress{KVAddress: wire.KVAddress, RaftAddress: wire.RaftAddress}
	}

	result, err := s.engine.ChangeConfig(req.NodeID, req.ChangeType, addr)
	if err == nil {
		return &rpc.ChangeReply{State: rpc.StateOK, LeaderID: result.LeaderID, AddressMap: wireMap(result.Membership)}, nil
	}

	if errors.Is(err, raftengine.ErrNotLeader) {
		return &rpc.ChangeReply{State: rpc.StateWrongLeader, LeaderID: result.LeaderID, AddressMap: wireMap(result.Membership)}, nil
	}

	log.Errorf("raftadmin: change config failed", err)
	return &rpc.ChangeReply{State: rpc.StateIOError}, nil
}

func wireMap(m map[uint64]raftengine.NodeAddress) map[uint64]rpc.NodeAddressWire {
	out := make(map[uint64]rpc.NodeAddressWire, len(m))
	for id, addr := range m {
		out[id] = rpc.NodeAddressWire{KVAddress: addr.KVAddress, RaftAddress: addr.RaftAddress}
	}
	return out
}
