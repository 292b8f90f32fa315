package qsync

import (
	"context"
	"time"

	"github.com/MacroPower/qsync/pkg/syncerrors"
)

// Acquire acquires in exclusive mode, ignoring interruption. It calls the
// policy's TryAcquire at least once, queuing and parking until it succeeds.
func (s *Synchronizer) Acquire(arg int64) {
	if !s.policy.TryAcquire(s, arg) {
		s.acquireQueued(context.Background(), s.addWaiter(false), arg, time.Time{})
	}
}

// AcquireContext acquires in exclusive mode, returning an error wrapping
// [syncerrors.ErrInterrupted] if ctx ends first.
func (s *Synchronizer) AcquireContext(ctx context.Context, arg int64) error {
	if ctx.Err() != nil {
		return syncerrors.Interrupted(ctx)
	}

	if s.policy.TryAcquire(s, arg) {
		return nil
	}

	_, err := s.acquireQueued(ctx, s.addWaiter(false), arg, time.Time{})

	return err
}

// TryAcquireTimeout acquires in exclusive mode, giving up after timeout. It
// returns false when the timeout elapsed, and an error wrapping
// [syncerrors.ErrInterrupted] if ctx ends first.
func (s *Synchronizer) TryAcquireTimeout(ctx context.Context, arg int64, timeout time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, syncerrors.Interrupted(ctx)
	}

	if s.policy.TryAcquire(s, arg) {
		return true, nil
	}

	if timeout <= 0 {
		return false, nil
	}

	return s.acquireQueued(ctx, s.addWaiter(false), arg, time.Now().Add(timeout))
}

// Release releases in exclusive mode. If the policy's TryRelease reports the
// state as free, one queued goroutine is unparked. It returns the result of
// TryRelease.
func (s *Synchronizer) Release(arg int64) bool {
	if !s.policy.TryRelease(s, arg) {
		return false
	}

	if h := s.head.Load(); h != nil && h.waitStatus.Load() != 0 {
		s.unparkSuccessor(h)
	}

	return true
}

// AcquireShared acquires in shared mode, ignoring interruption.
func (s *Synchronizer) AcquireShared(arg int64) {
	if s.policy.TryAcquireShared(s, arg) < 0 {
		s.acquireQueued(context.Background(), s.addWaiter(true), arg, time.Time{})
	}
}

// AcquireSharedContext acquires in shared mode, returning an error wrapping
// [syncerrors.ErrInterrupted] if ctx ends first.
func (s *Synchronizer) AcquireSharedContext(ctx context.Context, arg int64) error {
	if ctx.Err() != nil {
		return syncerrors.Interrupted(ctx)
	}

	if s.policy.TryAcquireShared(s, arg) >= 0 {
		return nil
	}

	_, err := s.acquireQueued(ctx, s.addWaiter(true), arg, time.Time{})

	return err
}

// TryAcquireSharedTimeout acquires in shared mode, giving up after timeout.
func (s *Synchronizer) TryAcquireSharedTimeout(ctx context.Context, arg int64, timeout time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, syncerrors.Interrupted(ctx)
	}

	if s.policy.TryAcquireShared(s, arg) >= 0 {
		return true, nil
	}

	if timeout <= 0 {
		return false, nil
	}

	return s.acquireQueued(ctx, s.addWaiter(true), arg, time.Now().Add(timeout))
}

// ReleaseShared releases in shared mode. If the policy's TryReleaseShared
// succeeds, queued goroutines are unparked and the wake-up propagates through
// consecutive shared waiters.
func (s *Synchronizer) ReleaseShared(arg int64) bool {
	if !s.policy.TryReleaseShared(s, arg) {
		return false
	}

	s.doReleaseShared()

	return true
}

// acquireQueued is the waiting loop for a node already on the sync queue. The
// node acquires once its predecessor is head and the policy agrees; until
// then it arms its predecessor and parks.
//
// A context that can never be done (such as [context.Background]) makes the
// wait uninterruptible. A zero deadline makes it untimed. On timeout,
// interruption or a panicking hook the node is cancelled.
func (s *Synchronizer) acquireQueued(ctx context.Context, n *node, arg int64, deadline time.Time) (bool, error) {
	failed := true
	defer func() {
		if failed {
			s.cancelAcquire(n)
		}
	}()

	interruptible := ctx.Done() != nil
	timed := !deadline.IsZero()

	for {
		p := n.predecessor()
		if p == s.head.Load() && s.tryAcquireQueued(n, arg) {
			p.next.Store(nil)

			failed = false

			return true, nil
		}

		var remaining time.Duration
		if timed {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return false, nil
			}
		}

		if s.shouldParkAfterFailedAcquire(p, n) {
			switch {
			case timed:
				if remaining > spinForTimeoutThreshold {
					_ = n.parker.ParkTimeout(ctx, remaining)
				}
			case interruptible:
				_ = n.parker.ParkContext(ctx)
			default:
				n.parker.Park()
			}
		}

		if interruptible && ctx.Err() != nil {
			return false, syncerrors.Interrupted(ctx)
		}
	}
}

// tryAcquireQueued attempts the acquire for n, which is first in line, and
// makes n the head on success.
func (s *Synchronizer) tryAcquireQueued(n *node, arg int64) bool {
	if !n.shared {
		if !s.policy.TryAcquire(s, arg) {
			return false
		}

		s.setHead(n)

		return true
	}

	r := s.policy.TryAcquireShared(s, arg)
	if r < 0 {
		return false
	}

	s.setHeadAndPropagate(n, r)

	return true
}

// setHeadAndPropagate makes n the head and, if propagate or the old or new
// head's status says another shared acquire might succeed, keeps releasing.
// Checking both heads can cause unnecessary wake-ups, but never a missed one.
func (s *Synchronizer) setHeadAndPropagate(n *node, propagate int64) {
	old := s.head.Load()
	s.setHead(n)

	if propagate > 0 || signalling(old) || signalling(s.head.Load()) {
		if next := n.next.Load(); next == nil || next.shared {
			s.doReleaseShared()
		}
	}
}

func signalling(h *node) bool {
	return h == nil || h.waitStatus.Load() < 0
}

// doReleaseShared wakes the successor of head, or marks head PROPAGATE when
// nobody needs a signal yet, repeating while the head keeps changing.
func (s *Synchronizer) doReleaseShared() {
	for {
		h := s.head.Load()
		if h != nil && h != s.tail.Load() {
			switch ws := h.waitStatus.Load(); {
			case ws == statusSignal:
				if !h.waitStatus.CompareAndSwap(statusSignal, 0) {
					continue
				}

				s.unparkSuccessor(h)
			case ws == 0:
				if !h.waitStatus.CompareAndSwap(0, statusPropagate) {
					continue
				}
			}
		}

		if h == s.head.Load() {
			return
		}
	}
}
