package qsync

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/MacroPower/qsync/pkg/park"
	"github.com/MacroPower/qsync/pkg/syncerrors"
)

// Below this many nanoseconds of remaining time, timed waits spin rather than
// park, because the timer would not fire accurately enough to be worth it.
const spinForTimeoutThreshold = time.Microsecond

// Synchronizer is a queue-based synchronizer. See the package documentation
// for an overview. Create instances with [New]; a Synchronizer must not be
// copied after first use.
type Synchronizer struct {
	policy Policy

	state atomic.Int64
	// head and tail are nil until the first goroutine has to queue.
	head atomic.Pointer[node]
	tail atomic.Pointer[node]

	owner atomic.Int64
}

// New creates a [Synchronizer] that interprets its state with policy, starting
// at the given initial state.
func New(policy Policy, initial int64) *Synchronizer {
	s := &Synchronizer{policy: policy}
	s.state.Store(initial)

	return s
}

// State returns the current state.
func (s *Synchronizer) State() int64 {
	return s.state.Load()
}

// SetState sets the state. Policies use it when they already own the state
// exclusively.
func (s *Synchronizer) SetState(v int64) {
	s.state.Store(v)
}

// CompareAndSetState atomically sets the state to update if it currently
// holds expect.
func (s *Synchronizer) CompareAndSetState(expect, update int64) bool {
	return s.state.CompareAndSwap(expect, update)
}

// ExclusiveOwner returns the goroutine recorded by [Synchronizer.SetExclusiveOwner].
func (s *Synchronizer) ExclusiveOwner() park.Thread {
	return park.Thread(s.owner.Load())
}

// SetExclusiveOwner records the goroutine that currently owns exclusive
// access. It has no effect on queuing; policies use it for reentrancy and
// ownership checks.
func (s *Synchronizer) SetExclusiveOwner(t park.Thread) {
	s.owner.Store(int64(t))
}

// NewCondition creates a [ConditionObject] bound to s.
func (s *Synchronizer) NewCondition() *ConditionObject {
	return &ConditionObject{sync: s}
}

func (s *Synchronizer) String() string {
	q := "empty"
	if s.HasQueuedThreads() {
		q = "non-empty"
	}

	return fmt.Sprintf("qsync.Synchronizer{state=%d, queue=%s}", s.State(), q)
}

// enq inserts n at the tail, installing the dummy head on first contention,
// and returns the node's predecessor.
func (s *Synchronizer) enq(n *node) *node {
	for {
		t := s.tail.Load()
		if t == nil {
			h := newNode(park.NoThread, false)
			if s.head.CompareAndSwap(nil, h) {
				s.tail.Store(h)
			}

			continue
		}

		n.prev.Store(t)
		if s.tail.CompareAndSwap(t, n) {
			t.next.Store(n)

			return t
		}
	}
}

// addWaiter queues a node for the calling goroutine in the given mode.
func (s *Synchronizer) addWaiter(shared bool) *node {
	n := newNode(park.Current(), shared)

	// Fast path: one CAS onto an initialized queue.
	if pred := s.tail.Load(); pred != nil {
		n.prev.Store(pred)
		if s.tail.CompareAndSwap(pred, n) {
			pred.next.Store(n)

			return n
		}
	}

	s.enq(n)

	return n
}

// setHead makes n the dummy head. Only the goroutine that acquired on behalf
// of n calls it.
func (s *Synchronizer) setHead(n *node) {
	s.head.Store(n)
	n.thread.Store(int64(park.NoThread))
	n.prev.Store(nil)
}

// unparkSuccessor wakes the first live node after n, if any.
func (s *Synchronizer) unparkSuccessor(n *node) {
	// Clearing the status is allowed to fail, the successor re-arms it.
	if ws := n.waitStatus.Load(); ws < 0 {
		n.waitStatus.CompareAndSwap(ws, 0)
	}

	succ := n.next.Load()
	if succ == nil || succ.waitStatus.Load() > 0 {
		// next is stale or cancelled: walk back from tail along prev, which
		// is always set before a node becomes reachable.
		succ = nil
		for t := s.tail.Load(); t != nil && t != n; t = t.prev.Load() {
			if t.waitStatus.Load() <= 0 {
				succ = t
			}
		}
	}

	if succ != nil {
		succ.unpark()
	}
}

// shouldParkAfterFailedAcquire checks and arms the predecessor of a node that
// failed to acquire. It returns true only when pred is already SIGNAL, so the
// node can park knowing it will be woken. Otherwise it either skips cancelled
// predecessors or makes one attempt to set SIGNAL, and returns false so the
// caller retries the acquire before parking.
func (s *Synchronizer) shouldParkAfterFailedAcquire(pred, n *node) bool {
	ws := pred.waitStatus.Load()
	if ws == statusSignal {
		return true
	}

	if ws > 0 {
		for {
			pred = pred.prev.Load()
			n.prev.Store(pred)
			if pred.waitStatus.Load() <= 0 {
				break
			}
		}

		pred.next.Store(n)
	} else {
		pred.waitStatus.CompareAndSwap(ws, statusSignal)
	}

	return false
}

// cancelAcquire abandons n's acquisition attempt.
func (s *Synchronizer) cancelAcquire(n *node) {
	if n == nil {
		return
	}

	n.thread.Store(int64(park.NoThread))

	pred := n.prev.Load()
	for pred.waitStatus.Load() > 0 {
		pred = pred.prev.Load()
		n.prev.Store(pred)
	}

	// predNext is the node to unsplice; the CASes below fail harmlessly if
	// another cancel or signal got there first.
	predNext := pred.next.Load()

	// From here on other nodes can skip past n.
	n.waitStatus.Store(statusCancelled)

	if n == s.tail.Load() && s.tail.CompareAndSwap(n, pred) {
		pred.next.CompareAndSwap(predNext, nil)

		return
	}

	if pred != s.head.Load() && armed(pred) && pred.owner() != park.NoThread {
		// Someone else's release will reach the successor through pred.
		if next := n.next.Load(); next != nil && next.waitStatus.Load() <= 0 {
			pred.next.CompareAndSwap(predNext, next)
		}
	} else {
		s.unparkSuccessor(n)
	}

	n.next.Store(n)
}

// armed reports whether n is SIGNAL, setting it if n is not cancelled.
func armed(n *node) bool {
	ws := n.waitStatus.Load()
	if ws == statusSignal {
		return true
	}

	return ws <= 0 && n.waitStatus.CompareAndSwap(ws, statusSignal)
}

// fullyRelease releases the entire current state on behalf of a condition
// waiter, returning the released amount. If the release fails the node is
// cancelled before the panic escapes.
func (s *Synchronizer) fullyRelease(n *node) int64 {
	failed := true
	defer func() {
		if failed {
			n.waitStatus.Store(statusCancelled)
		}
	}()

	saved := s.State()
	if !s.Release(saved) {
		panic(syncerrors.IllegalState("release of saved state failed"))
	}

	failed = false

	return saved
}

// isOnSyncQueue reports whether n, initially placed on a condition list, has
// been transferred to the sync queue.
func (s *Synchronizer) isOnSyncQueue(n *node) bool {
	if n.waitStatus.Load() == statusCondition || n.prev.Load() == nil {
		return false
	}

	if n.next.Load() != nil {
		return true
	}

	// prev may be set while the CAS onto tail is still failing, so confirm
	// from tail. The node is almost always near the tail.
	return s.findNodeFromTail(n)
}

func (s *Synchronizer) findNodeFromTail(n *node) bool {
	for t := s.tail.Load(); t != nil; t = t.prev.Load() {
		if t == n {
			return true
		}
	}

	return false
}

// transferForSignal moves n from a condition list to the sync queue. It
// returns false if n was cancelled before it could be signalled.
func (s *Synchronizer) transferForSignal(n *node) bool {
	if !n.waitStatus.CompareAndSwap(statusCondition, 0) {
		return false
	}

	// If the predecessor is cancelled or cannot be armed, wake n so it can
	// resynchronize itself; a spurious wake-up is harmless.
	p := s.enq(n)
	if ws := p.waitStatus.Load(); ws > 0 || !p.waitStatus.CompareAndSwap(ws, statusSignal) {
		n.unpark()
	}

	return true
}

// transferAfterCancelledWait moves n to the sync queue after its condition
// wait ended without a signal. It returns true if n won the race against a
// signal, and false if a signal had already claimed it.
func (s *Synchronizer) transferAfterCancelledWait(n *node) bool {
	if n.waitStatus.CompareAndSwap(statusCondition, 0) {
		s.enq(n)

		return true
	}

	// A signaller claimed n but may not have finished enqueuing it. The window
	// is tiny, so yield until it has.
	for !s.isOnSyncQueue(n) {
		yield()
	}

	return false
}

func yield() {
	runtime.Gosched()
}
