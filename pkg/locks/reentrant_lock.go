package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/MacroPower/qsync/pkg/park"
	"github.com/MacroPower/qsync/pkg/qsync"
	"github.com/MacroPower/qsync/pkg/syncerrors"
)

// exclusivePolicy keeps the hold count in the state and the owning goroutine
// in the synchronizer.
type exclusivePolicy struct {
	qsync.UnsupportedPolicy

	fair bool
}

func (p exclusivePolicy) TryAcquire(s *qsync.Synchronizer, arg int64) bool {
	if p.fair && s.State() == 0 && s.HasQueuedPredecessors() {
		return false
	}

	return bargeAcquire(s, arg)
}

// bargeAcquire acquires regardless of queued goroutines.
func bargeAcquire(s *qsync.Synchronizer, arg int64) bool {
	cur := park.Current()

	c := s.State()
	if c == 0 {
		if s.CompareAndSetState(0, arg) {
			s.SetExclusiveOwner(cur)

			return true
		}

		return false
	}

	if s.ExclusiveOwner() != cur {
		return false
	}

	next := c + arg
	if next < 0 {
		panic(fmt.Errorf("%w: lock hold count", syncerrors.ErrHoldOverflow))
	}

	s.SetState(next)

	return true
}

func (exclusivePolicy) TryRelease(s *qsync.Synchronizer, arg int64) bool {
	if s.ExclusiveOwner() != park.Current() {
		panic(syncerrors.IllegalState("unlock of a lock not held by the current goroutine"))
	}

	c := s.State() - arg

	free := c == 0
	if free {
		s.SetExclusiveOwner(park.NoThread)
	}

	s.SetState(c)

	return free
}

func (exclusivePolicy) IsHeldExclusively(s *qsync.Synchronizer) bool {
	return s.ExclusiveOwner() == park.Current()
}

// ReentrantLock is a mutual-exclusion lock that may be reacquired by the
// goroutine holding it. Each Lock must be matched by an Unlock from the same
// goroutine.
//
// A non-fair lock lets an arriving goroutine take a free lock ahead of queued
// ones. A fair lock grants it to the longest-waiting goroutine, except for
// [ReentrantLock.TryLock], which always barges.
type ReentrantLock struct {
	sync *qsync.Synchronizer
	fair bool
}

// NewReentrantLock creates a new [ReentrantLock].
func NewReentrantLock(fair bool) *ReentrantLock {
	return &ReentrantLock{
		sync: qsync.New(exclusivePolicy{fair: fair}, 0),
		fair: fair,
	}
}

// Lock acquires the lock, blocking until it is available.
func (l *ReentrantLock) Lock() {
	if !l.fair && l.sync.CompareAndSetState(0, 1) {
		l.sync.SetExclusiveOwner(park.Current())

		return
	}

	l.sync.Acquire(1)
}

// LockContext acquires the lock, returning an error wrapping
// [syncerrors.ErrInterrupted] if ctx ends first.
func (l *ReentrantLock) LockContext(ctx context.Context) error {
	return l.sync.AcquireContext(ctx, 1)
}

// TryLock acquires the lock only if it is free or already held by the
// calling goroutine.
func (l *ReentrantLock) TryLock() bool {
	return bargeAcquire(l.sync, 1)
}

// TryLockTimeout acquires the lock, giving up after timeout.
func (l *ReentrantLock) TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return l.sync.TryAcquireTimeout(ctx, 1, timeout)
}

// Unlock releases one hold. It panics if the calling goroutine does not hold
// the lock.
func (l *ReentrantLock) Unlock() {
	l.sync.Release(1)
}

// NewCondition returns a condition bound to the lock.
func (l *ReentrantLock) NewCondition() *qsync.ConditionObject {
	return l.sync.NewCondition()
}

// HoldCount returns the number of holds by the calling goroutine.
func (l *ReentrantLock) HoldCount() int {
	if !l.IsHeldByCurrentThread() {
		return 0
	}

	return int(l.sync.State())
}

// IsHeldByCurrentThread reports whether the calling goroutine holds the lock.
func (l *ReentrantLock) IsHeldByCurrentThread() bool {
	return l.sync.ExclusiveOwner() == park.Current()
}

// IsLocked reports whether any goroutine holds the lock.
func (l *ReentrantLock) IsLocked() bool {
	return l.sync.State() != 0
}

// IsFair reports whether the lock grants access in FIFO order.
func (l *ReentrantLock) IsFair() bool {
	return l.fair
}

// Owner returns the goroutine holding the lock, or [park.NoThread].
func (l *ReentrantLock) Owner() park.Thread {
	if l.sync.State() == 0 {
		return park.NoThread
	}

	return l.sync.ExclusiveOwner()
}

// HasQueuedThreads reports whether any goroutine may be waiting to acquire.
func (l *ReentrantLock) HasQueuedThreads() bool {
	return l.sync.HasQueuedThreads()
}

// HasQueuedThread reports whether t is waiting to acquire.
func (l *ReentrantLock) HasQueuedThread(t park.Thread) bool {
	return l.sync.IsQueued(t)
}

// QueueLength returns an estimate of the number of waiting goroutines.
func (l *ReentrantLock) QueueLength() int {
	return l.sync.QueueLength()
}

// HasWaiters reports whether any goroutine is waiting on c, which must have
// been created by this lock.
func (l *ReentrantLock) HasWaiters(c *qsync.ConditionObject) bool {
	checkOwns(l.sync, c)

	return c.HasWaiters()
}

// WaitQueueLength returns the number of goroutines waiting on c, which must
// have been created by this lock.
func (l *ReentrantLock) WaitQueueLength(c *qsync.ConditionObject) int {
	checkOwns(l.sync, c)

	return c.WaitQueueLength()
}

func (l *ReentrantLock) String() string {
	if o := l.Owner(); o != park.NoThread {
		return fmt.Sprintf("locks.ReentrantLock{locked by %s}", o)
	}

	return "locks.ReentrantLock{unlocked}"
}

func checkOwns(s *qsync.Synchronizer, c *qsync.ConditionObject) {
	if c == nil || !s.Owns(c) {
		panic(syncerrors.IllegalState("condition is not bound to this lock"))
	}
}
