package raftengine

import (
	"testing"
	"time"

	"github.com/cuemby/raftkv/pkg/kvstore"
	"github.com/cuemby/raftkv/pkg/rpc"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, nodeID uint64, bootstrap bool) (*Engine, *kvstore.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := kvstore.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	e, err := New(Config{
		NodeID:      nodeID,
		RaftAddress: "127.0.0.1:0",
		KVAddress:   "127.0.0.1:0",
		DataDir:     dir,
		Bootstrap:   bootstrap,
	}, store)
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown() })
	return e, store
}

func waitForLeader(t *testing.T, e *Engine) {
	t.Helper()
	require.Eventually(t, e.IsLeader, 5*time.Second, 10*time.Millisecond)
}

func TestBootstrapBecomesLeader(t *testing.T) {
	e, _ := newTestEngine(t, 1, true)
	waitForLeader(t, e)

	require.Eventually(t, func() bool {
		_, peers := e.Stats()
		return peers == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProposePutAppliesToStore(t *testing.T) {
	e, store := newTestEngine(t, 1, true)
	waitForLeader(t, e)

	result, err := e.Propose(PutOp([]byte("alpha"), []byte("1")))
	require.NoError(t, err)
	require.True(t, result.IsLeader)
	require.Equal(t, uint64(1), result.LeaderID)

	v, err := store.Get([]byte("alpha"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
}

func TestProposeDeleteIsNoopOnMissingKey(t *testing.T) {
	e, _ := newTestEngine(t, 1, true)
	waitForLeader(t, e)

	_, err := e.Propose(DeleteOp([]byte("never-existed")))
	require.NoError(t, err)
}

func TestNonLeaderPropose(t *testing.T) {
	e, _ := newTestEngine(t, 2, false)

	_, err := e.Propose(PutOp([]byte("k"), []byte("v")))
	require.ErrorIs(t, err, ErrNotLeader)
}

func TestChangeConfigRejectedOnNonLeader(t *testing.T) {
	e, _ := newTestEngine(t, 2, false)

	_, err := e.ChangeConfig(3, rpc.AddNode, NodeAddress{KVAddress: "127.0.0.1:1", RaftAddress: "127.0.0.1:2"})
	require.ErrorIs(t, err, ErrNotLeader)
}

func TestReadReflectsMembershipAfterBootstrap(t *testing.T) {
	e, _ := newTestEngine(t, 1, true)
	waitForLeader(t, e)

	require.Eventually(t, func() bool {
		result := e.Read()
		return result.IsLeader && len(result.Membership) == 1 && result.Membership[1].RaftAddress != ""
	}, 2*time.Second, 10*time.Millisecond)
}
