package qsync

import (
	"sync/atomic"

	"github.com/MacroPower/qsync/pkg/park"
)

// Wait statuses. Non-negative values mean the node needs no signalling, so
// most code only checks the sign.
const (
	// The node's acquisition was cancelled. Terminal.
	statusCancelled int32 = 1
	// The successor is (or will soon be) parked, so the node must unpark it
	// when it releases or cancels.
	statusSignal int32 = -1
	// The node is on a condition list, not the sync queue.
	statusCondition int32 = -2
	// A shared release must keep propagating to further waiters.
	statusPropagate int32 = -3
)

// node is a waiter on the sync queue or on a condition list.
//
// prev is the authoritative link of the sync queue: it is set before a node
// is published as tail, while next is only set afterwards and may be stale.
type node struct {
	waitStatus atomic.Int32
	prev       atomic.Pointer[node]
	next       atomic.Pointer[node]
	// thread is the waiting goroutine, cleared once the node is satisfied or
	// cancelled.
	thread atomic.Int64

	// nextWaiter links condition waiters. Only the exclusive holder of the
	// owning synchronizer reads or writes it.
	nextWaiter *node

	parker *park.Parker
	shared bool
}

func newNode(t park.Thread, shared bool) *node {
	n := &node{parker: park.New(), shared: shared}
	n.thread.Store(int64(t))

	return n
}

func (n *node) owner() park.Thread {
	return park.Thread(n.thread.Load())
}

func (n *node) predecessor() *node {
	p := n.prev.Load()
	if p == nil {
		panic("qsync: queued node has no predecessor")
	}

	return p
}

func (n *node) unpark() {
	n.parker.Unpark()
}
