package raftadmin

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/raftkv/pkg/kvstore"
	"github.com/cuemby/raftkv/pkg/raftengine"
	"github.com/cuemby/raftkv/pkg/rpc"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, nodeID uint64, bootstrap bool) *Server {
	t.Helper()
	dir := t.TempDir()
	store, err := kvstore.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine, err := raftengine.New(raftengine.Config{
		NodeID:      nodeID,
		RaftAddress: "127.0.0.1:0",
		KVAddress:   "127.0.0.1:0",
		DataDir:     dir,
		Bootstrap:   bootstrap,
	}, store)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Shutdown() })

	if bootstrap {
		require.Eventually(t, engine.IsLeader, 5*time.Second, 10*time.Millisecond)
	}

	return New(engine)
}

func TestStatusReportsLeaderAndMembership(t *testing.T) {
	s := newTestServer(t, 1, true)

	require.Eventually(t, func() bool {
		reply, err := s.Status(context.Background(), &rpc.StatusRequest{})
		return err == nil && reply.LeaderID == 1 && len(reply.AddressMap) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChangeConfigRejectedOnFollower(t *testing.T) {
	s := newTestServer(t, 2, false)

	reply, err := s.ChangeConfig(context.Background(), &rpc.ConfChangeRequest{
		NodeID:     3,
		ChangeType: rpc.AddNode,
		Context:    EncodeAddress(rpc.NodeAddressWire{KVAddress: "127.0.0.1:1", RaftAddress: "127.0.0.1:2"}),
	})
	require.NoError(t, err)
	require.Equal(t, rpc.StateWrongLeader, reply.State)
}
