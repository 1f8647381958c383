// Package integration exercises raftkv end to end: real Engines, real gRPC
// servers, real client retries, wired together in-process via
// test/framework rather than spawned binaries.
package integration

import (
	"testing"
	"time"

	"github.com/cuemby/raftkv/pkg/raftkvclient"
	"github.com/cuemby/raftkv/test/framework"
	"github.com/stretchr/testify/require"
)

// S1: single-node bootstrap. put/get/delete/get round trip on a lone node.
func TestSingleNodeBootstrap(t *testing.T) {
	c := framework.NewBootstrapped(t)
	cl := c.Client()

	require.NoError(t, cl.Put([]byte("alpha"), []byte("1")))

	val, err := cl.Get([]byte("alpha"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), val)

	require.NoError(t, cl.Delete([]byte("alpha")))

	_, err = cl.Get([]byte("alpha"))
	require.ErrorIs(t, err, raftkvclient.ErrNotFound)
}

// S2: join and replicate. A write committed before node 2 joins is visible
// on node 2 shortly after it joins.
func TestJoinAndReplicate(t *testing.T) {
	c := framework.NewBootstrapped(t)
	cl := c.Client()
	require.NoError(t, cl.Put([]byte("k"), []byte("v")))

	c.Join(2)

	require.Eventually(t, func() bool {
		onNode2, err := raftkvclient.New(c.AddrOf(2))
		if err != nil {
			return false
		}
		defer onNode2.Close()
		val, err := onNode2.Get([]byte("k"))
		return err == nil && string(val) == "v"
	}, 500*time.Millisecond, 10*time.Millisecond)
}

// S3: leader failover. Killing the leader still lets a client succeed
// within its retry budget once a new leader is elected.
func TestLeaderFailover(t *testing.T) {
	c := framework.NewBootstrapped(t)
	c.Join(2)
	c.Join(3)

	cl := c.Client()
	require.NoError(t, cl.Put([]byte("x"), []byte("0")))

	c.StopLeader()

	require.Eventually(t, func() bool {
		return cl.Put([]byte("x"), []byte("1")) == nil
	}, 10*time.Second, 50*time.Millisecond, "put never succeeded against the new leader")
}

// A client bootstrapped from a follower learns the leader from that
// follower's Status reply, so its write goes to the leader and lands. No
// WRONG_LEADER redirect is taken on this path.
func TestWriteThroughFollowerSeed(t *testing.T) {
	c := framework.NewBootstrapped(t)
	c.Join(2)
	c.Join(3)

	require.Eventually(t, func() bool { return c.Leader() != nil }, 5*time.Second, 20*time.Millisecond)

	var follower *framework.Node
	for _, n := range c.Nodes {
		if !n.Engine.IsLeader() {
			follower = n
			break
		}
	}
	require.NotNil(t, follower)

	cl, err := raftkvclient.New(follower.KVAddr)
	require.NoError(t, err)
	defer cl.Close()

	require.NoError(t, cl.Put([]byte("y"), []byte("1")))

	val, err := cl.Get([]byte("y"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), val)
}

// S5: membership shrink. Leaving a node drops it from every subsequent
// addressMap.
func TestMembershipShrink(t *testing.T) {
	c := framework.NewBootstrapped(t)
	c.Join(2)
	c.Join(3)

	cl := c.Client()
	_, addrs, err := cl.Status()
	require.NoError(t, err)
	require.Len(t, addrs, 3)

	c.Leave(3)

	require.Eventually(t, func() bool {
		_, addrs, err := cl.Status()
		return err == nil && len(addrs) == 2
	}, 2*time.Second, 20*time.Millisecond)

	_, addrs, err = cl.Status()
	require.NoError(t, err)
	require.NotContains(t, addrs, uint64(3))
}

// S6: write while a minority is partitioned. Writes through the surviving
// majority succeed; once the partitioned node is reintroduced it catches up
// to the post-partition value.
func TestWriteWhileMinorityPartitioned(t *testing.T) {
	c := framework.NewBootstrapped(t)
	c.Join(2)
	n3 := c.Join(3)

	// Simulate a partition by taking node 3's server down without telling
	// Raft to remove it from the configuration.
	n3.Stop()
	for i, n := range c.Nodes {
		if n.ID == 3 {
			c.Nodes = append(c.Nodes[:i], c.Nodes[i+1:]...)
			break
		}
	}

	cl := c.Client()
	require.NoError(t, cl.Put([]byte("z"), []byte("partitioned")))

	// Healing the partition here means rejoining node 3 as a fresh member,
	// since this harness has no way to pause and resume a live TCP link.
	c.Join(3)

	require.Eventually(t, func() bool {
		status, err := raftkvclient.New(c.AddrOf(3))
		if err != nil {
			return false
		}
		defer status.Close()
		val, err := status.Get([]byte("z"))
		return err == nil && string(val) == "partitioned"
	}, 2*time.Second, 20*time.Millisecond)
}
