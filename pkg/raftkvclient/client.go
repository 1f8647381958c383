// Package raftkvclient is the client-side routing cache: it tracks known
// nodes and their addresses, picks a target per call (rotating followers
// for reads, the believed leader for writes and admin calls), follows
// leader redirects, and reconciles its view against the server-returned
// membership map on every reply. It is the one component that survives
// across calls from a user program's perspective; the servers it talks to
// are long-running daemons.
package raftkvclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/raftkv/pkg/metrics"
	"github.com/cuemby/raftkv/pkg/raftadmin"
	"github.com/cuemby/raftkv/pkg/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	callTimeout = 2 * time.Second
	maxAttempts = 10
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("raftkvclient: key not found")

// ErrRetryExhausted is returned after maxAttempts unsuccessful attempts.
var ErrRetryExhausted = errors.New("raftkvclient: retry budget exhausted")

// nodeConn lazily holds the single long-lived RPC channel a node needs: the
// KV service and the Raft admin service are both registered on the same
// gRPC server at a node's KVAddress, so one connection serves both stub
// types. RaftAddress is never dialed directly by this package — it's
// hashicorp/raft's own peer-to-peer wire protocol, opaque to clients.
type nodeConn struct {
	conn       *grpc.ClientConn
	kvClient   rpc.KvServiceClient
	raftClient rpc.RaftServiceClient
}

func (c *nodeConn) close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// Client is the routing cache. Every exported method holds an internal
// mutex for its whole duration, so concurrent calls from several goroutines
// are serialized rather than interleaved.
type Client struct {
	mu sync.Mutex

	leaderID  uint64
	nodeID    uint64 // current read target
	nextIndex int

	addresses map[uint64]rpc.NodeAddressWire
	conns     map[uint64]*nodeConn
}

// New tries each address in seedAddrs in turn, issuing a Status RPC against
// its KV-facing gRPC endpoint (which also serves the Raft admin service),
// and builds a Client from the first reachable one. A production deployment
// should pass every known node's KV address as a seed so bootstrap survives
// any single node being down.
func New(seedAddrs ...string) (*Client, error) {
	if len(seedAddrs) == 0 {
		return nil, fmt.Errorf("raftkvclient: at least one seed address is required")
	}

	var lastErr error
	for _, addr := range seedAddrs {
		c, err := bootstrapFrom(addr)
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("raftkvclient: no seed address reachable, last error: %w", lastErr)
}

func bootstrapFrom(seedAddr string) (*Client, error) {
	conn, err := dial(seedAddr)
	if err != nil {
		return nil, fmt.Errorf("raftkvclient: dial %s: %w", seedAddr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	reply, err := rpc.NewRaftServiceClient(conn).Status(ctx, &rpc.StatusRequest{})
	if err != nil {
		return nil, fmt.Errorf("raftkvclient: status from %s: %w", seedAddr, err)
	}

	c := &Client{
		leaderID:  reply.LeaderID,
		addresses: make(map[uint64]rpc.NodeAddressWire),
		conns:     make(map[uint64]*nodeConn),
	}
	c.reconcileLocked(reply.AddressMap)

	c.nodeID = 0
	for id, addr := range reply.AddressMap {
		if addr.KVAddress == seedAddr {
			c.nodeID = id
			break
		}
	}
	if c.nodeID == 0 {
		for id := range reply.AddressMap {
			c.nodeID = id
			break
		}
	}

	return c, nil
}

// Close closes every open connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, nc := range c.conns {
		nc.close()
	}
	return nil
}

// Get performs a read against the current rotation target, following the
// fail-fast-on-transport-error contract from spec.md §4.4.
func (c *Client) Get(key []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		kvClient, err := c.kvClientLocked(c.nodeID)
		if err != nil {
			return nil, fmt.Errorf("raftkvclient: get: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		reply, err := kvClient.Get(ctx, &rpc.GetRequest{Key: key})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("raftkvclient: get: transport error: %w", err)
		}

		c.reconcileLocked(reply.AddressMap)
		c.rotateReadTargetLocked()

		switch reply.State {
		case rpc.StateOK:
			return reply.Value, nil
		case rpc.StateNotFound:
			return nil, ErrNotFound
		default:
			metrics.ClientRetriesTotal.WithLabelValues("get").Inc()
		}
	}

	return nil, ErrRetryExhausted
}

// Put proposes key=val through the believed leader, following WRONG_LEADER
// redirects up to the retry budget. When the believed leader is unreachable
// it moves on to another known node, whose reply names the current leader.
func (c *Client) Put(key, val []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		kvClient, err := c.kvClientLocked(c.leaderID)
		if err != nil {
			return fmt.Errorf("raftkvclient: put: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		reply, err := kvClient.Put(ctx, &rpc.PutRequest{Key: key, Value: val})
		cancel()
		if err != nil {
			moved := false
			for id := range c.addresses {
				if id != c.leaderID {
					c.leaderID, moved = id, true
					break
				}
			}
			if !moved {
				return fmt.Errorf("raftkvclient: put: transport error: %w", err)
			}
			metrics.ClientRetriesTotal.WithLabelValues("put").Inc()
			continue
		}

		c.reconcileLocked(reply.AddressMap)

		switch reply.State {
		case rpc.StateOK:
			return nil
		case rpc.StateWrongLeader:
			// A hint of a node not in the map (0 = unknown) keeps the
			// current target, which is asked again on the next attempt.
			if _, known := c.addresses[reply.LeaderID]; known {
				c.leaderID = reply.LeaderID
			}
			metrics.ClientRetriesTotal.WithLabelValues("put").Inc()
			metrics.ClientRedirectsTotal.Inc()
		default:
			return fmt.Errorf("raftkvclient: put: %s", reply.State)
		}
	}

	return ErrRetryExhausted
}

// Delete removes key through the believed leader, following WRONG_LEADER
// redirects up to the retry budget.
func (c *Client) Delete(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		kvClient, err := c.kvClientLocked(c.leaderID)
		if err != nil {
			return fmt.Errorf("raftkvclient: delete: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		reply, err := kvClient.Delete(ctx, &rpc.DeleteRequest{Key: key})
		cancel()
		if err != nil {
			return fmt.Errorf("raftkvclient: delete: transport error: %w", err)
		}

		c.reconcileLocked(reply.AddressMap)

		switch reply.State {
		case rpc.StateOK:
			return nil
		case rpc.StateWrongLeader:
			c.leaderID = reply.LeaderID
			metrics.ClientRetriesTotal.WithLabelValues("delete").Inc()
			metrics.ClientRedirectsTotal.Inc()
		default:
			return fmt.Errorf("raftkvclient: delete: %s", reply.State)
		}
	}

	return ErrRetryExhausted
}

// Status queries the Raft admin service on the current read target. Every
// node answers with its own leader hint and membership view, so this never
// follows a redirect — it's a single best-effort call.
func (c *Client) Status() (leaderID uint64, addresses map[uint64]rpc.NodeAddressWire, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raftClient, err := c.raftClientLocked(c.nodeID)
	if err != nil {
		return 0, nil, fmt.Errorf("raftkvclient: status: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	reply, err := raftClient.Status(ctx, &rpc.StatusRequest{})
	if err != nil {
		return 0, nil, fmt.Errorf("raftkvclient: status: transport error: %w", err)
	}

	c.reconcileLocked(reply.AddressMap)
	return reply.LeaderID, reply.AddressMap, nil
}

// Join asks the believed leader to add a new node to the cluster,
// following WRONG_LEADER redirects up to the retry budget.
func (c *Client) Join(nodeID uint64, addr rpc.NodeAddressWire) error {
	return c.changeConfig(nodeID, rpc.AddNode, raftadmin.EncodeAddress(addr))
}

// Leave asks the believed leader to remove a node from the cluster,
// following WRONG_LEADER redirects up to the retry budget.
func (c *Client) Leave(nodeID uint64) error {
	return c.changeConfig(nodeID, rpc.RemoveNode, nil)
}

func (c *Client) changeConfig(nodeID uint64, changeType rpc.ChangeType, confContext []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		raftClient, err := c.raftClientLocked(c.leaderID)
		if err != nil {
			return fmt.Errorf("raftkvclient: change config: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		reply, err := raftClient.ChangeConfig(ctx, &rpc.ConfChangeRequest{
			NodeID:     nodeID,
			ChangeType: changeType,
			Context:    confContext,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("raftkvclient: change config: transport error: %w", err)
		}

		c.reconcileLocked(reply.AddressMap)

		switch reply.State {
		case rpc.StateOK:
			return nil
		case rpc.StateWrongLeader:
			c.leaderID = reply.LeaderID
			metrics.ClientRetriesTotal.WithLabelValues("change_config").Inc()
			metrics.ClientRedirectsTotal.Inc()
		default:
			return fmt.Errorf("raftkvclient: change config: %s", reply.State)
		}
	}

	return ErrRetryExhausted
}

// rotateReadTargetLocked advances nextIndex across the current address set
// so consecutive reads spread across nodes (best-effort; set iteration
// order need not be stable across reconciliations).
func (c *Client) rotateReadTargetLocked() {
	if len(c.addresses) == 0 {
		return
	}
	ids := make([]uint64, 0, len(c.addresses))
	for id := range c.addresses {
		ids = append(ids, id)
	}
	c.nextIndex = (c.nextIndex + 1) % len(ids)
	c.nodeID = ids[c.nextIndex]
}

// reconcileLocked is a full set intersect-and-diff against reply, the
// authoritative membership snapshot: new ids are recorded (their connection
// is dialed on first use), changed addresses get their old connection closed
// so the next use dials the new address, and ids absent from reply are
// dropped and their connections closed.
func (c *Client) reconcileLocked(reply map[uint64]rpc.NodeAddressWire) {
	for id, addr := range reply {
		existing, ok := c.addresses[id]
		if ok && existing == addr {
			continue
		}
		if ok {
			if nc, ok := c.conns[id]; ok {
				nc.close()
				delete(c.conns, id)
			}
		}
		c.addresses[id] = addr
	}

	for id := range c.addresses {
		if _, ok := reply[id]; !ok {
			if nc, ok := c.conns[id]; ok {
				nc.close()
				delete(c.conns, id)
			}
			delete(c.addresses, id)
		}
	}

	if c.nextIndex >= len(c.addresses) && len(c.addresses) > 0 {
		c.nextIndex = c.nextIndex % len(c.addresses)
	}
}

func (c *Client) kvClientLocked(id uint64) (rpc.KvServiceClient, error) {
	nc, err := c.nodeConnLocked(id)
	if err != nil {
		return nil, err
	}
	if nc.kvClient == nil {
		nc.kvClient = rpc.NewKvServiceClient(nc.conn)
	}
	return nc.kvClient, nil
}

func (c *Client) raftClientLocked(id uint64) (rpc.RaftServiceClient, error) {
	nc, err := c.nodeConnLocked(id)
	if err != nil {
		return nil, err
	}
	if nc.raftClient == nil {
		nc.raftClient = rpc.NewRaftServiceClient(nc.conn)
	}
	return nc.raftClient, nil
}

func (c *Client) nodeConnLocked(id uint64) (*nodeConn, error) {
	addr, ok := c.addresses[id]
	if !ok {
		return nil, fmt.Errorf("node %d not in membership map", id)
	}
	nc, ok := c.conns[id]
	if !ok {
		conn, err := dial(addr.KVAddress)
		if err != nil {
			return nil, fmt.Errorf("dial node %d at %s: %w", id, addr.KVAddress, err)
		}
		nc = &nodeConn{conn: conn}
		c.conns[id] = nc
	}
	return nc, nil
}

func dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		rpc.DialOption(),
	)
}
