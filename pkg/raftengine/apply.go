package raftengine

import (
	"fmt"

	"github.com/cuemby/raftkv/pkg/kvstore"
	"github.com/cuemby/raftkv/pkg/log"
	"github.com/cuemby/raftkv/pkg/metrics"
)

// applyWorker is the single consumer of committed put/delete ops. It is the
// only writer of those ops into the KV engine, keeping applies strictly
// sequential and decoupled from the raft FSM callback's own goroutine
// concerns. Snapshot restore (stateMachine.Restore) replaces the KV
// engine's contents directly, without passing through the worker.
type applyWorker struct {
	store   *kvstore.Store
	applyCh chan *applyRequest
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newApplyWorker(store *kvstore.Store, applyCh chan *applyRequest) *applyWorker {
	return &applyWorker{
		store:   store,
		applyCh: applyCh,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func (w *applyWorker) run() {
	defer close(w.doneCh)
	for {
		select {
		case req, ok := <-w.applyCh:
			if !ok {
				return
			}
			w.apply(req)
		case <-w.stopCh:
			return
		}
	}
}

func (w *applyWorker) apply(req *applyRequest) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ApplyDuration)

	var err error
	switch req.op.Kind {
	case opPut:
		err = w.store.Put(req.op.Key, req.op.Value)
	case opDelete:
		err = w.store.Delete(req.op.Key)
	default:
		err = fmt.Errorf("apply worker: unexpected op kind %q", req.op.Kind)
	}

	if err != nil {
		metrics.ApplyErrorsTotal.Inc()
		log.Errorf("apply worker: failed to apply committed op", err)
	}

	req.resp <- err
}

func (w *applyWorker) stop() {
	close(w.stopCh)
	<-w.doneCh
}
