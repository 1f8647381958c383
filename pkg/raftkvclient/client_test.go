package raftkvclient

import (
	"net"
	"testing"
	"time"

	"github.com/cuemby/raftkv/pkg/kvservice"
	"github.com/cuemby/raftkv/pkg/kvstore"
	"github.com/cuemby/raftkv/pkg/raftadmin"
	"github.com/cuemby/raftkv/pkg/raftengine"
	"github.com/cuemby/raftkv/pkg/rpc"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

// testNode wires one engine + one gRPC server registering both KvService and
// RaftService on the same listener, matching the production layout where a
// single KVAddress serves both.
type testNode struct {
	engine *raftengine.Engine
	server *grpc.Server
	addr   string
}

func startTestNode(t *testing.T, nodeID uint64, bootstrap bool) *testNode {
	t.Helper()
	dir := t.TempDir()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	kvAddr := lis.Addr().String()

	store, err := kvstore.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine, err := raftengine.New(raftengine.Config{
		NodeID:      nodeID,
		RaftAddress: "127.0.0.1:0",
		KVAddress:   kvAddr,
		DataDir:     dir,
		Bootstrap:   bootstrap,
	}, store)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Shutdown() })

	srv := grpc.NewServer()
	rpc.RegisterKvServiceServer(srv, kvservice.New(engine, store))
	rpc.RegisterRaftServiceServer(srv, raftadmin.New(engine))

	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	if bootstrap {
		require.Eventually(t, engine.IsLeader, 5*time.Second, 10*time.Millisecond)
	}

	return &testNode{engine: engine, server: srv, addr: kvAddr}
}

func TestBootstrapIdentifiesLeaderAndSelf(t *testing.T) {
	node := startTestNode(t, 1, true)

	var c *Client
	require.Eventually(t, func() bool {
		var err error
		c, err = New(node.addr)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, uint64(1), c.leaderID)
	require.Equal(t, uint64(1), c.nodeID)
	require.Contains(t, c.addresses, uint64(1))
}

func TestPutGetDeleteThroughClient(t *testing.T) {
	node := startTestNode(t, 1, true)

	var c *Client
	require.Eventually(t, func() bool {
		var err error
		c, err = New(node.addr)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer c.Close()

	require.NoError(t, c.Put([]byte("k"), []byte("v")))

	val, err := c.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), val)

	require.NoError(t, c.Delete([]byte("k")))

	_, err = c.Get([]byte("k"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStatusReconcilesAddressMap(t *testing.T) {
	node := startTestNode(t, 1, true)

	var c *Client
	require.Eventually(t, func() bool {
		var err error
		c, err = New(node.addr)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer c.Close()

	leaderID, addrs, err := c.Status()
	require.NoError(t, err)
	require.Equal(t, uint64(1), leaderID)
	require.Contains(t, addrs, uint64(1))
}

func TestBootstrapFallsBackAcrossSeeds(t *testing.T) {
	node := startTestNode(t, 1, true)
	require.Eventually(t, node.engine.IsLeader, 2*time.Second, 10*time.Millisecond)

	unreachable := "127.0.0.1:1"
	c, err := New(unreachable, node.addr)
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, uint64(1), c.leaderID)
}

func TestBootstrapFailsWhenNoSeedReachable(t *testing.T) {
	_, err := New("127.0.0.1:1")
	require.Error(t, err)
}
