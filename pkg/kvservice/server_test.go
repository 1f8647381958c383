package kvservice

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/raftkv/pkg/kvstore"
	"github.com/cuemby/raftkv/pkg/raftengine"
	"github.com/cuemby/raftkv/pkg/rpc"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	store, err := kvstore.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine, err := raftengine.New(raftengine.Config{
		NodeID:      1,
		RaftAddress: "127.0.0.1:0",
		KVAddress:   "127.0.0.1:0",
		DataDir:     dir,
		Bootstrap:   true,
	}, store)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Shutdown() })

	require.Eventually(t, engine.IsLeader, 5*time.Second, 10*time.Millisecond)

	return New(engine, store)
}

func TestPutGetDeleteRoundTrip(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	putReply, err := s.Put(ctx, &rpc.PutRequest{Key: []byte("alpha"), Value: []byte("1")})
	require.NoError(t, err)
	require.Equal(t, rpc.StateOK, putReply.State)

	getReply, err := s.Get(ctx, &rpc.GetRequest{Key: []byte("alpha")})
	require.NoError(t, err)
	require.Equal(t, rpc.StateOK, getReply.State)
	require.Equal(t, []byte("1"), getReply.Value)

	delReply, err := s.Delete(ctx, &rpc.DeleteRequest{Key: []byte("alpha")})
	require.NoError(t, err)
	require.Equal(t, rpc.StateOK, delReply.State)

	getReply, err = s.Get(ctx, &rpc.GetRequest{Key: []byte("alpha")})
	require.NoError(t, err)
	require.Equal(t, rpc.StateNotFound, getReply.State)
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	s := newTestServer(t)

	reply, err := s.Get(context.Background(), &rpc.GetRequest{Key: []byte("missing")})
	require.NoError(t, err)
	require.Equal(t, rpc.StateNotFound, reply.State)
}

func TestReplyCarriesAddressMap(t *testing.T) {
	s := newTestServer(t)

	reply, err := s.Put(context.Background(), &rpc.PutRequest{Key: []byte("k"), Value: []byte("v")})
	require.NoError(t, err)
	require.Contains(t, reply.AddressMap, uint64(1))
}
