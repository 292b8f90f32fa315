package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MacroPower/qsync/pkg/park"
	"github.com/MacroPower/qsync/pkg/qsync"
	"github.com/MacroPower/qsync/pkg/syncerrors"
)

// The state packs the read hold count into the high 32 bits and the write
// hold count into the low 32 bits.
const (
	sharedShift   = 32
	sharedUnit    = int64(1) << sharedShift
	maxCount      = int64(1)<<sharedShift - 1
	exclusiveMask = maxCount
)

func sharedCount(c int64) int64    { return c >> sharedShift }
func exclusiveCount(c int64) int64 { return c & exclusiveMask }

// readHold is a per-goroutine read hold count. Only its goroutine touches it.
type readHold struct {
	count int
}

type rwPolicy struct {
	fair bool

	// park.Thread -> *readHold
	holds sync.Map
}

func (p *rwPolicy) hold(t park.Thread) *readHold {
	if h, ok := p.holds.Load(t); ok {
		return h.(*readHold) //nolint:forcetypeassert // Only *readHold is stored.
	}

	return nil
}

func (p *rwPolicy) addReadHold(t park.Thread) {
	if h := p.hold(t); h != nil {
		h.count++

		return
	}

	p.holds.Store(t, &readHold{count: 1})
}

func (p *rwPolicy) readerShouldBlock(s *qsync.Synchronizer) bool {
	if p.fair {
		return s.HasQueuedPredecessors()
	}

	// Avoid indefinitely starving a writer that is next in line.
	return s.ApparentlyFirstQueuedIsExclusive()
}

func (p *rwPolicy) writerShouldBlock(s *qsync.Synchronizer) bool {
	return p.fair && s.HasQueuedPredecessors()
}

func (p *rwPolicy) TryAcquire(s *qsync.Synchronizer, arg int64) bool {
	c := s.State()
	w := exclusiveCount(c)

	if c != 0 {
		// Readers present, or another goroutine writing.
		if w == 0 || s.ExclusiveOwner() != park.Current() {
			return false
		}

		if w+arg > maxCount {
			panic(fmt.Errorf("%w: write hold count", syncerrors.ErrHoldOverflow))
		}

		s.SetState(c + arg)

		return true
	}

	if p.writerShouldBlock(s) || !s.CompareAndSetState(c, c+arg) {
		return false
	}

	s.SetExclusiveOwner(park.Current())

	return true
}

func (p *rwPolicy) TryRelease(s *qsync.Synchronizer, arg int64) bool {
	if !p.IsHeldExclusively(s) {
		panic(syncerrors.IllegalState("write unlock of a lock not held by the current goroutine"))
	}

	next := s.State() - arg

	free := exclusiveCount(next) == 0
	if free {
		s.SetExclusiveOwner(park.NoThread)
	}

	s.SetState(next)

	return free
}

func (p *rwPolicy) IsHeldExclusively(s *qsync.Synchronizer) bool {
	return s.ExclusiveOwner() == park.Current()
}

func (p *rwPolicy) TryAcquireShared(s *qsync.Synchronizer, _ int64) int64 {
	cur := park.Current()

	c := s.State()
	if exclusiveCount(c) != 0 && s.ExclusiveOwner() != cur {
		return -1
	}

	if !p.readerShouldBlock(s) && sharedCount(c) < maxCount && s.CompareAndSetState(c, c+sharedUnit) {
		p.addReadHold(cur)

		return 1
	}

	return p.fullTryAcquireShared(s, cur)
}

// fullTryAcquireShared handles CAS misses and reentrant reads that the fast
// path in TryAcquireShared does not.
func (p *rwPolicy) fullTryAcquireShared(s *qsync.Synchronizer, cur park.Thread) int64 {
	for {
		c := s.State()

		if exclusiveCount(c) != 0 {
			if s.ExclusiveOwner() != cur {
				return -1
			}
			// Holding the write lock; blocking here would deadlock.
		} else if p.readerShouldBlock(s) && p.hold(cur) == nil {
			// Only reentrant reads may proceed.
			return -1
		}

		if sharedCount(c) == maxCount {
			panic(fmt.Errorf("%w: read hold count", syncerrors.ErrHoldOverflow))
		}

		if s.CompareAndSetState(c, c+sharedUnit) {
			p.addReadHold(cur)

			return 1
		}
	}
}

func (p *rwPolicy) TryReleaseShared(s *qsync.Synchronizer, _ int64) bool {
	cur := park.Current()

	h := p.hold(cur)
	if h == nil {
		panic(syncerrors.IllegalState("read unlock of a lock not held by the current goroutine"))
	}

	h.count--
	if h.count == 0 {
		p.holds.Delete(cur)
	}

	for {
		c := s.State()

		next := c - sharedUnit
		if s.CompareAndSetState(c, next) {
			// Releasing a read lock does not affect readers, but it may let
			// a waiting writer proceed once all read locks are gone.
			return next == 0
		}
	}
}

// tryReadLock acquires a read hold regardless of queued goroutines.
func (p *rwPolicy) tryReadLock(s *qsync.Synchronizer) bool {
	cur := park.Current()

	for {
		c := s.State()
		if exclusiveCount(c) != 0 && s.ExclusiveOwner() != cur {
			return false
		}

		if sharedCount(c) == maxCount {
			panic(fmt.Errorf("%w: read hold count", syncerrors.ErrHoldOverflow))
		}

		if s.CompareAndSetState(c, c+sharedUnit) {
			p.addReadHold(cur)

			return true
		}
	}
}

// tryWriteLock acquires a write hold regardless of queued goroutines.
func (p *rwPolicy) tryWriteLock(s *qsync.Synchronizer) bool {
	c := s.State()
	if c != 0 {
		w := exclusiveCount(c)
		if w == 0 || s.ExclusiveOwner() != park.Current() {
			return false
		}

		if w == maxCount {
			panic(fmt.Errorf("%w: write hold count", syncerrors.ErrHoldOverflow))
		}
	}

	if !s.CompareAndSetState(c, c+1) {
		return false
	}

	s.SetExclusiveOwner(park.Current())

	return true
}

// ReentrantRWLock is a reader/writer lock that may be reacquired by the
// goroutines holding it. Any number of goroutines may hold the read lock
// while no goroutine holds the write lock.
//
// The write lock holder may also acquire the read lock, and then release the
// write lock to downgrade. Upgrading from read to write is not possible: a
// reader that requests the write lock blocks forever.
//
// In non-fair mode, an arriving reader blocks when a writer appears to be
// first in the queue, unless the reader already holds a read lock. In fair
// mode, both locks are granted in arrival order.
type ReentrantRWLock struct {
	policy *rwPolicy
	sync   *qsync.Synchronizer

	readLock  *ReadLock
	writeLock *WriteLock
}

// NewReentrantRWLock creates a new [ReentrantRWLock].
func NewReentrantRWLock(fair bool) *ReentrantRWLock {
	p := &rwPolicy{fair: fair}
	l := &ReentrantRWLock{
		policy: p,
		sync:   qsync.New(p, 0),
	}

	l.readLock = &ReadLock{rw: l}
	l.writeLock = &WriteLock{rw: l}

	return l
}

// ReadLock returns the read half of the lock.
func (l *ReentrantRWLock) ReadLock() *ReadLock { return l.readLock }

// WriteLock returns the write half of the lock.
func (l *ReentrantRWLock) WriteLock() *WriteLock { return l.writeLock }

// Lock acquires the write lock.
func (l *ReentrantRWLock) Lock() { l.writeLock.Lock() }

// Unlock releases one write hold.
func (l *ReentrantRWLock) Unlock() { l.writeLock.Unlock() }

// RLock acquires the read lock.
func (l *ReentrantRWLock) RLock() { l.readLock.Lock() }

// RUnlock releases one read hold.
func (l *ReentrantRWLock) RUnlock() { l.readLock.Unlock() }

// RLocker returns a [sync.Locker] that acquires and releases the read lock.
func (l *ReentrantRWLock) RLocker() sync.Locker { return l.readLock }

// ReadLockCount returns the number of read holds across all goroutines.
func (l *ReentrantRWLock) ReadLockCount() int {
	return int(sharedCount(l.sync.State()))
}

// ReadHoldCount returns the number of read holds by the calling goroutine.
func (l *ReentrantRWLock) ReadHoldCount() int {
	if h := l.policy.hold(park.Current()); h != nil {
		return h.count
	}

	return 0
}

// IsWriteLocked reports whether any goroutine holds the write lock.
func (l *ReentrantRWLock) IsWriteLocked() bool {
	return exclusiveCount(l.sync.State()) != 0
}

// IsWriteLockedByCurrentThread reports whether the calling goroutine holds
// the write lock.
func (l *ReentrantRWLock) IsWriteLockedByCurrentThread() bool {
	return l.sync.ExclusiveOwner() == park.Current()
}

// WriteHoldCount returns the number of write holds by the calling goroutine.
func (l *ReentrantRWLock) WriteHoldCount() int {
	if !l.IsWriteLockedByCurrentThread() {
		return 0
	}

	return int(exclusiveCount(l.sync.State()))
}

// IsFair reports whether the lock grants access in FIFO order.
func (l *ReentrantRWLock) IsFair() bool { return l.policy.fair }

// Owner returns the goroutine holding the write lock, or [park.NoThread].
func (l *ReentrantRWLock) Owner() park.Thread {
	if exclusiveCount(l.sync.State()) == 0 {
		return park.NoThread
	}

	return l.sync.ExclusiveOwner()
}

// HasQueuedThreads reports whether any goroutine may be waiting for either
// lock.
func (l *ReentrantRWLock) HasQueuedThreads() bool {
	return l.sync.HasQueuedThreads()
}

// HasQueuedThread reports whether t is waiting for either lock.
func (l *ReentrantRWLock) HasQueuedThread(t park.Thread) bool {
	return l.sync.IsQueued(t)
}

// QueueLength returns an estimate of the number of waiting goroutines.
func (l *ReentrantRWLock) QueueLength() int {
	return l.sync.QueueLength()
}

// QueuedWriters returns the goroutines waiting for the write lock.
func (l *ReentrantRWLock) QueuedWriters() []park.Thread {
	return l.sync.ExclusiveQueuedThreads()
}

// QueuedReaders returns the goroutines waiting for the read lock.
func (l *ReentrantRWLock) QueuedReaders() []park.Thread {
	return l.sync.SharedQueuedThreads()
}

// HasWaiters reports whether any goroutine is waiting on c, which must have
// been created by the write lock.
func (l *ReentrantRWLock) HasWaiters(c *qsync.ConditionObject) bool {
	checkOwns(l.sync, c)

	return c.HasWaiters()
}

// WaitQueueLength returns the number of goroutines waiting on c, which must
// have been created by the write lock.
func (l *ReentrantRWLock) WaitQueueLength(c *qsync.ConditionObject) int {
	checkOwns(l.sync, c)

	return c.WaitQueueLength()
}

func (l *ReentrantRWLock) String() string {
	c := l.sync.State()

	return fmt.Sprintf("locks.ReentrantRWLock{write locks = %d, read locks = %d}",
		exclusiveCount(c), sharedCount(c))
}

// ReadLock is the read half of a [ReentrantRWLock].
type ReadLock struct {
	rw *ReentrantRWLock
}

// Lock acquires a read hold, blocking while another goroutine holds the
// write lock.
func (r *ReadLock) Lock() {
	r.rw.sync.AcquireShared(1)
}

// LockContext acquires a read hold, returning an error wrapping
// [syncerrors.ErrInterrupted] if ctx ends first.
func (r *ReadLock) LockContext(ctx context.Context) error {
	return r.rw.sync.AcquireSharedContext(ctx, 1)
}

// TryLock acquires a read hold only if the write lock is free or held by the
// calling goroutine. It barges ahead of queued goroutines, even in fair mode.
func (r *ReadLock) TryLock() bool {
	return r.rw.policy.tryReadLock(r.rw.sync)
}

// TryLockTimeout acquires a read hold, giving up after timeout.
func (r *ReadLock) TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return r.rw.sync.TryAcquireSharedTimeout(ctx, 1, timeout)
}

// Unlock releases one read hold. It panics if the calling goroutine holds no
// read lock.
func (r *ReadLock) Unlock() {
	r.rw.sync.ReleaseShared(1)
}

// NewCondition panics: read locks do not support conditions.
func (r *ReadLock) NewCondition() *qsync.ConditionObject {
	panic(syncerrors.Unsupported("condition on a read lock"))
}

func (r *ReadLock) String() string {
	return fmt.Sprintf("locks.ReadLock{read locks = %d}", r.rw.ReadLockCount())
}

// WriteLock is the write half of a [ReentrantRWLock].
type WriteLock struct {
	rw *ReentrantRWLock
}

// Lock acquires a write hold, blocking while any other goroutine holds
// either lock.
func (w *WriteLock) Lock() {
	w.rw.sync.Acquire(1)
}

// LockContext acquires a write hold, returning an error wrapping
// [syncerrors.ErrInterrupted] if ctx ends first.
func (w *WriteLock) LockContext(ctx context.Context) error {
	return w.rw.sync.AcquireContext(ctx, 1)
}

// TryLock acquires a write hold only if neither lock is held by another
// goroutine. It barges ahead of queued goroutines, even in fair mode.
func (w *WriteLock) TryLock() bool {
	return w.rw.policy.tryWriteLock(w.rw.sync)
}

// TryLockTimeout acquires a write hold, giving up after timeout.
func (w *WriteLock) TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return w.rw.sync.TryAcquireTimeout(ctx, 1, timeout)
}

// Unlock releases one write hold. It panics if the calling goroutine does
// not hold the write lock.
func (w *WriteLock) Unlock() {
	w.rw.sync.Release(1)
}

// NewCondition returns a condition bound to the write lock.
func (w *WriteLock) NewCondition() *qsync.ConditionObject {
	return w.rw.sync.NewCondition()
}

// IsHeldByCurrentThread reports whether the calling goroutine holds the
// write lock.
func (w *WriteLock) IsHeldByCurrentThread() bool {
	return w.rw.IsWriteLockedByCurrentThread()
}

// HoldCount returns the number of write holds by the calling goroutine.
func (w *WriteLock) HoldCount() int {
	return w.rw.WriteHoldCount()
}

func (w *WriteLock) String() string {
	if o := w.rw.Owner(); o != park.NoThread {
		return fmt.Sprintf("locks.WriteLock{locked by %s}", o)
	}

	return "locks.WriteLock{unlocked}"
}
