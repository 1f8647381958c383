package raftengine

import "errors"

// ErrNotLeader is returned by Propose/ChangeConfig when the local node is
// not the Raft leader. Callers translate this into WRONG_LEADER plus the
// LeaderID field of the returned Result.
var ErrNotLeader = errors.New("raftengine: not the leader")

// ErrTimeout is returned when a call does not receive a commit callback
// within its deadline. The underlying proposal is not cancelled; it may
// still commit and apply later (a put overwrites and a delete of an absent
// key is a noop; see kvstore.Store.Delete).
var ErrTimeout = errors.New("raftengine: timed out waiting for commit")

// ErrShuttingDown names the shutting-down condition. No Engine method
// returns it: after Shutdown the raft instance is no longer leader, so
// Propose and ChangeConfig report ErrNotLeader.
var ErrShuttingDown = errors.New("raftengine: engine is shutting down")
