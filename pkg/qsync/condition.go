package qsync

import (
	"context"
	"time"

	"github.com/MacroPower/qsync/pkg/park"
	"github.com/MacroPower/qsync/pkg/syncerrors"
)

// How a condition wait ended.
const (
	// Still waiting, or woken by a signal.
	wakeSignalled = iota
	// Interrupted after a signal had already claimed the node. The wait
	// completes normally and the interruption stays visible on the context.
	wakeInterruptedAfterSignal
	// Interrupted before any signal. The wait reports the interruption.
	wakeInterrupted
)

// ConditionObject is a condition variable bound to a [Synchronizer] used in
// exclusive mode. Create instances with [Synchronizer.NewCondition].
//
// Every method requires the calling goroutine to hold the synchronizer
// exclusively, as reported by the policy's IsHeldExclusively, and panics with
// an error wrapping [syncerrors.ErrIllegalState] otherwise. The waiter list
// is only ever touched by the holder, so it needs no atomics of its own.
type ConditionObject struct {
	sync        *Synchronizer
	firstWaiter *node
	lastWaiter  *node
}

// Await releases the synchronizer, waits for a signal, and reacquires
// exactly the state that was released before returning, even when it fails.
// It returns an error wrapping [syncerrors.ErrInterrupted] if ctx ended before
// a signal arrived. A spurious return is never reported as a signal: the
// waiter only leaves once it has been moved back onto the sync queue.
func (c *ConditionObject) Await(ctx context.Context) error {
	if ctx.Err() != nil {
		return syncerrors.Interrupted(ctx)
	}

	n := c.addConditionWaiter()
	saved := c.sync.fullyRelease(n)

	mode := wakeSignalled
	for !c.sync.isOnSyncQueue(n) {
		_ = n.parker.ParkContext(ctx)

		if mode = c.checkInterruptWhileWaiting(ctx, n); mode != wakeSignalled {
			break
		}
	}

	return c.reacquire(ctx, n, saved, mode)
}

// AwaitUninterruptibly is like [ConditionObject.Await] but cannot be
// interrupted.
func (c *ConditionObject) AwaitUninterruptibly() {
	n := c.addConditionWaiter()
	saved := c.sync.fullyRelease(n)

	for !c.sync.isOnSyncQueue(n) {
		n.parker.Park()
	}

	_ = c.reacquire(context.Background(), n, saved, wakeSignalled)
}

// AwaitNanos is like [ConditionObject.Await] but gives up waiting for a
// signal after timeout. It returns an estimate of the time left, which is
// zero or negative when the timeout elapsed.
func (c *ConditionObject) AwaitNanos(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	deadline := time.Now().Add(timeout)

	_, err := c.awaitDeadline(ctx, deadline)

	return time.Until(deadline), err
}

// AwaitTimeout is like [ConditionObject.Await] but gives up waiting for a
// signal after timeout. It returns false if the timeout elapsed first.
func (c *ConditionObject) AwaitTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return c.AwaitUntil(ctx, time.Now().Add(timeout))
}

// AwaitUntil is like [ConditionObject.Await] but gives up waiting for a
// signal at deadline. It returns false if the deadline passed first.
func (c *ConditionObject) AwaitUntil(ctx context.Context, deadline time.Time) (bool, error) {
	timedOut, err := c.awaitDeadline(ctx, deadline)

	return !timedOut, err
}

func (c *ConditionObject) awaitDeadline(ctx context.Context, deadline time.Time) (bool, error) {
	if ctx.Err() != nil {
		return false, syncerrors.Interrupted(ctx)
	}

	n := c.addConditionWaiter()
	saved := c.sync.fullyRelease(n)

	timedOut := false
	mode := wakeSignalled

	for !c.sync.isOnSyncQueue(n) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			timedOut = c.sync.transferAfterCancelledWait(n)

			break
		}

		if remaining > spinForTimeoutThreshold {
			_ = n.parker.ParkTimeout(ctx, remaining)
		}

		if mode = c.checkInterruptWhileWaiting(ctx, n); mode != wakeSignalled {
			break
		}
	}

	return timedOut, c.reacquire(ctx, n, saved, mode)
}

// reacquire runs the ordinary exclusive acquire loop for a node that is on
// the sync queue, restoring the saved state.
func (c *ConditionObject) reacquire(ctx context.Context, n *node, saved int64, mode int) error {
	_, _ = c.sync.acquireQueued(context.Background(), n, saved, time.Time{})

	// Cancelled waiters keep their condition-list links until the holder
	// unlinks them.
	if n.nextWaiter != nil {
		c.unlinkCancelledWaiters()
	}

	if mode == wakeInterrupted {
		return syncerrors.Interrupted(ctx)
	}

	return nil
}

// checkInterruptWhileWaiting reports how an interrupted wait ended, or
// wakeSignalled if ctx is still live.
func (c *ConditionObject) checkInterruptWhileWaiting(ctx context.Context, n *node) int {
	if ctx.Err() == nil {
		return wakeSignalled
	}

	if c.sync.transferAfterCancelledWait(n) {
		return wakeInterrupted
	}

	return wakeInterruptedAfterSignal
}

// Signal moves the longest-waiting goroutine, if any, from this condition
// back onto the synchronizer's wait queue.
func (c *ConditionObject) Signal() {
	c.checkHeld("signal")

	if first := c.firstWaiter; first != nil {
		c.doSignal(first)
	}
}

// SignalAll moves every waiting goroutine back onto the synchronizer's wait
// queue, in waiting order.
func (c *ConditionObject) SignalAll() {
	c.checkHeld("signal all")

	if first := c.firstWaiter; first != nil {
		c.doSignalAll(first)
	}
}

// HasWaiters reports whether any goroutine is waiting on this condition.
func (c *ConditionObject) HasWaiters() bool {
	c.checkHeld("has waiters")

	for w := c.firstWaiter; w != nil; w = w.nextWaiter {
		if w.waitStatus.Load() == statusCondition {
			return true
		}
	}

	return false
}

// WaitQueueLength returns the number of goroutines waiting on this condition.
func (c *ConditionObject) WaitQueueLength() int {
	c.checkHeld("wait queue length")

	n := 0
	for w := c.firstWaiter; w != nil; w = w.nextWaiter {
		if w.waitStatus.Load() == statusCondition {
			n++
		}
	}

	return n
}

// WaitingThreads returns the goroutines waiting on this condition.
func (c *ConditionObject) WaitingThreads() []park.Thread {
	c.checkHeld("waiting threads")

	var threads []park.Thread
	for w := c.firstWaiter; w != nil; w = w.nextWaiter {
		if w.waitStatus.Load() != statusCondition {
			continue
		}

		if t := w.owner(); t != park.NoThread {
			threads = append(threads, t)
		}
	}

	return threads
}

func (c *ConditionObject) checkHeld(op string) {
	if !c.sync.policy.IsHeldExclusively(c.sync) {
		panic(syncerrors.IllegalState(op + " without holding the lock"))
	}
}

// addConditionWaiter appends a node for the calling goroutine.
func (c *ConditionObject) addConditionWaiter() *node {
	c.checkHeld("await")

	t := c.lastWaiter
	if t != nil && t.waitStatus.Load() != statusCondition {
		c.unlinkCancelledWaiters()
		t = c.lastWaiter
	}

	n := newNode(park.Current(), false)
	n.waitStatus.Store(statusCondition)

	if t == nil {
		c.firstWaiter = n
	} else {
		t.nextWaiter = n
	}

	c.lastWaiter = n

	return n
}

// doSignal removes nodes from the front of the list until one transfers or
// the list is empty. Nodes that fail to transfer were cancelled.
func (c *ConditionObject) doSignal(first *node) {
	for first != nil {
		c.firstWaiter = first.nextWaiter
		if c.firstWaiter == nil {
			c.lastWaiter = nil
		}

		first.nextWaiter = nil

		if c.sync.transferForSignal(first) {
			return
		}

		first = c.firstWaiter
	}
}

func (c *ConditionObject) doSignalAll(first *node) {
	c.firstWaiter = nil
	c.lastWaiter = nil

	for first != nil {
		next := first.nextWaiter
		first.nextWaiter = nil
		c.sync.transferForSignal(first)
		first = next
	}
}

// unlinkCancelledWaiters removes every node that is no longer in CONDITION
// status. Called with the lock held, when a cancellation is noticed during
// await or when a new waiter finds a cancelled tail.
func (c *ConditionObject) unlinkCancelledWaiters() {
	var trail *node

	for t := c.firstWaiter; t != nil; {
		next := t.nextWaiter

		if t.waitStatus.Load() != statusCondition {
			t.nextWaiter = nil

			if trail == nil {
				c.firstWaiter = next
			} else {
				trail.nextWaiter = next
			}

			if next == nil {
				c.lastWaiter = trail
			}
		} else {
			trail = t
		}

		t = next
	}
}
