// Package kvservice is the RPC endpoint clients dial for Get/Put/Delete. It
// holds a read handle on the local KV engine and routes mutations through
// the consensus engine, translating its leader hints into WRONG_LEADER
// redirects.
package kvservice

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/raftkv/pkg/kvstore"
	"github.com/cuemby/raftkv/pkg/log"
	"github.com/cuemby/raftkv/pkg/metrics"
	"github.com/cuemby/raftkv/pkg/raftengine"
	"github.com/cuemby/raftkv/pkg/rpc"
)

// callTimeout bounds how long a handler waits on the consensus engine
// before giving up and reporting IO_ERROR. It does not cancel an
// in-flight proposal; see raftengine.ErrTimeout's doc comment.
const callTimeout = 2 * time.Second

// Server implements rpc.KvServiceServer.
type Server struct {
	rpc.UnimplementedKvServiceServer

	engine *raftengine.Engine
	store  *kvstore.Store
}

// New builds a Server backed by engine and store, which must share the
// same underlying KV engine instance.
func New(engine *raftengine.Engine, store *kvstore.Store) *Server {
	return &Server{engine: engine, store: store}
}

// Get serves a read directly from the local KV engine; it never proposes
// to the log.
func (s *Server) Get(ctx context.Context, req *rpc.GetRequest) (*rpc.GetReply, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.KVRequestDuration, "get")

	type outcome struct {
		reply *rpc.GetReply
	}
	done := make(chan outcome, 1)

	go func() {
		result := s.engine.Read()
		leaderID := result.LeaderID
		if result.IsLeader {
			leaderID = s.engine.NodeID()
		}

		value, err := s.store.Get(req.Key)
		state := rpc.StateOK
		switch {
		case err == nil:
		case errors.Is(err, kvstore.ErrNotFound):
			state = rpc.StateNotFound
			value = nil
		default:
			state = rpc.StateIOError
			value = nil
			log.Errorf("kvservice: get failed", err)
		}

		done <- outcome{reply: &rpc.GetReply{
			State:      state,
			Value:      value,
			LeaderID:   leaderID,
			AddressMap: wireMap(result.Membership),
		}}
	}()

	select {
	case o := <-done:
		metrics.KVRequestsTotal.WithLabelValues("get", o.reply.State.String()).Inc()
		return o.reply, nil
	case <-time.After(callTimeout):
		metrics.KVRequestsTotal.WithLabelValues("get", rpc.StateIOError.String()).Inc()
		return &rpc.GetReply{State: rpc.StateIOError}, nil
	case <-ctx.Done():
		return &rpc.GetReply{State: rpc.StateIOError}, nil
	}
}

// Put proposes Op{Put{key,value}} and waits for the consensus outcome.
func (s *Server) Put(ctx context.Context, req *rpc.PutRequest) (*rpc.PutReply, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.KVRequestDuration, "put")

	state, leaderID, membership := s.proposeAndWait(ctx, raftengine.PutOp(req.Key, req.Value))
	metrics.KVRequestsTotal.WithLabelValues("put", state.String()).Inc()

	return &rpc.PutReply{State: state, LeaderID: leaderID, AddressMap: wireMap(membership)}, nil
}

// Delete proposes Op{Delete{key}} and waits for the consensus outcome.
func (s *Server) Delete(ctx context.Context, req *rpc.DeleteRequest) (*rpc.DeleteReply, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.KVRequestDuration, "delete")

	state, leaderID, membership := s.proposeAndWait(ctx, raftengine.DeleteOp(req.Key))
	metrics.KVRequestsTotal.WithLabelValues("delete", state.String()).Inc()

	return &rpc.DeleteReply{State: state, LeaderID: leaderID, AddressMap: wireMap(membership)}, nil
}

type proposeOutcome struct {
	result raftengine.Result
	err    error
}

func (s *Server) proposeAndWait(ctx context.Context, op raftengine.Op) (rpc.State, uint64, map[uint64]raftengine.NodeAddress) {
	done := make(chan proposeOutcome, 1)
	go func() {
		result, err := s.engine.Propose(op)
		done <- proposeOutcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		if o.err == nil {
			return rpc.StateOK, o.result.LeaderID, o.result.Membership
		}
		if errors.Is(o.err, raftengine.ErrNotLeader) {
			return rpc.StateWrongLeader, o.result.LeaderID, o.result.Membership
		}
		log.Errorf("kvservice: propose failed", o.err)
		return rpc.StateIOError, 0, nil
	case <-time.After(callTimeout):
		return rpc.StateIOError, 0, nil
	case <-ctx.Done():
		return rpc.StateIOError, 0, nil
	}
}

func wireMap(m map[uint64]raftengine.NodeAddress) map[uint64]rpc.NodeAddressWire {
	out := make(map[uint64]rpc.NodeAddressWire, len(m))
	for id, addr := range m {
		out[id] = rpc.NodeAddressWire{KVAddress: addr.KVAddress, RaftAddress: addr.RaftAddress}
	}
	return out
}
