// Package framework spins up raftkv nodes in-process for integration tests:
// each node runs a real Engine and a real gRPC server bound to an OS-assigned
// loopback port, the same way a production process would, just without a
// separate binary or VM to manage.
package framework

import (
	"net"
	"testing"
	"time"

	"github.com/cuemby/raftkv/pkg/kvservice"
	"github.com/cuemby/raftkv/pkg/kvstore"
	"github.com/cuemby/raftkv/pkg/raftadmin"
	"github.com/cuemby/raftkv/pkg/raftengine"
	"github.com/cuemby/raftkv/pkg/raftkvclient"
	"github.com/cuemby/raftkv/pkg/rpc"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

// Node is one raftkv process's worth of state, minus the process boundary.
type Node struct {
	ID       uint64
	KVAddr   string
	RaftAddr string
	Engine   *raftengine.Engine

	store  *kvstore.Store
	server *grpc.Server
}

// Cluster is a set of Nodes sharing a single test's lifetime.
type Cluster struct {
	t     *testing.T
	Nodes []*Node
}

// NewBootstrapped starts a single-node cluster with id 1 and waits for it to
// become leader.
func NewBootstrapped(t *testing.T) *Cluster {
	t.Helper()
	c := &Cluster{t: t}
	n := c.start(1, true)
	require.Eventually(t, n.Engine.IsLeader, 5*time.Second, 10*time.Millisecond, "node 1 never became leader")
	return c
}

// Join starts a new node with the given id and has it join the cluster
// through any currently known node, following redirects to the real leader.
func (c *Cluster) Join(nodeID uint64) *Node {
	c.t.Helper()
	seeds := c.seedAddrs() // snapshot before start() appends the not-yet-a-member new node

	n := c.start(nodeID, false)

	cl, err := raftkvclient.New(seeds...)
	require.NoError(c.t, err)
	defer cl.Close()

	err = cl.Join(nodeID, rpc.NodeAddressWire{KVAddress: n.KVAddr, RaftAddress: n.RaftAddr})
	require.NoError(c.t, err)

	return n
}

// Leave asks the cluster to remove nodeID, then stops its local process
// state.
func (c *Cluster) Leave(nodeID uint64) {
	c.t.Helper()

	cl, err := raftkvclient.New(c.seedAddrs()...)
	require.NoError(c.t, err)
	defer cl.Close()

	require.NoError(c.t, cl.Leave(nodeID))

	for i, n := range c.Nodes {
		if n.ID == nodeID {
			n.Stop()
			c.Nodes = append(c.Nodes[:i], c.Nodes[i+1:]...)
			return
		}
	}
}

// Client dials every known node, so joining/leaving elsewhere in the test
// doesn't strand it on a seed that's since left.
func (c *Cluster) Client() *raftkvclient.Client {
	c.t.Helper()
	cl, err := raftkvclient.New(c.seedAddrs()...)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { cl.Close() })
	return cl
}

// AddrOf returns the KV address of the node with the given id.
func (c *Cluster) AddrOf(nodeID uint64) string {
	for _, n := range c.Nodes {
		if n.ID == nodeID {
			return n.KVAddr
		}
	}
	return ""
}

// Leader returns the node that currently believes it holds leadership, or
// nil if none does yet.
func (c *Cluster) Leader() *Node {
	for _, n := range c.Nodes {
		if n.Engine.IsLeader() {
			return n
		}
	}
	return nil
}

// StopLeader kills whichever node currently holds leadership and removes it
// from the live node set, simulating a leader crash for failover tests.
func (c *Cluster) StopLeader() *Node {
	c.t.Helper()
	leader := c.Leader()
	require.NotNil(c.t, leader, "no leader to stop")

	leader.Stop()
	for i, n := range c.Nodes {
		if n.ID == leader.ID {
			c.Nodes = append(c.Nodes[:i], c.Nodes[i+1:]...)
			break
		}
	}
	return leader
}

func (c *Cluster) seedAddrs() []string {
	addrs := make([]string, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		addrs = append(addrs, n.KVAddr)
	}
	return addrs
}

func (c *Cluster) start(nodeID uint64, bootstrap bool) *Node {
	c.t.Helper()
	dir := c.t.TempDir()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(c.t, err)

	store, err := kvstore.Open(dir)
	require.NoError(c.t, err)

	engine, err := raftengine.New(raftengine.Config{
		NodeID:      nodeID,
		RaftAddress: "127.0.0.1:0",
		KVAddress:   lis.Addr().String(),
		DataDir:     dir,
		Bootstrap:   bootstrap,
	}, store)
	require.NoError(c.t, err)

	n := &Node{
		ID:       nodeID,
		KVAddr:   lis.Addr().String(),
		RaftAddr: engine.SelfAddress().RaftAddress,
		Engine:   engine,
		store:    store,
	}

	srv := grpc.NewServer()
	rpc.RegisterKvServiceServer(srv, kvservice.New(engine, store))
	rpc.RegisterRaftServiceServer(srv, raftadmin.New(engine))
	n.server = srv

	go srv.Serve(lis)

	c.Nodes = append(c.Nodes, n)
	return n
}

// Stop shuts down this node's gRPC server, Raft engine, and store. Safe to
// call once per node; Cluster.Leave and Cluster.StopLeader already call it.
func (n *Node) Stop() {
	n.server.Stop()
	n.Engine.Shutdown()
	n.store.Close()
}
