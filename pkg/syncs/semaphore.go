package syncs

import (
	"context"
	"fmt"
	"time"

	"github.com/MacroPower/qsync/pkg/qsync"
	"github.com/MacroPower/qsync/pkg/syncerrors"
)

type semaphorePolicy struct {
	qsync.UnsupportedPolicy

	fair bool
}

func (p semaphorePolicy) TryAcquireShared(s *qsync.Synchronizer, n int64) int64 {
	if p.fair && s.HasQueuedPredecessors() {
		return -1
	}

	return bargeAcquireShared(s, n)
}

// bargeAcquireShared takes n permits regardless of queued goroutines. It
// returns the remaining permits, negative if there were not enough.
func bargeAcquireShared(s *qsync.Synchronizer, n int64) int64 {
	for {
		available := s.State()

		remaining := available - n
		if remaining < 0 || s.CompareAndSetState(available, remaining) {
			return remaining
		}
	}
}

func (semaphorePolicy) TryReleaseShared(s *qsync.Synchronizer, n int64) bool {
	for {
		c := s.State()

		next := c + n
		if next < c {
			panic(fmt.Errorf("%w: semaphore permits", syncerrors.ErrHoldOverflow))
		}

		if s.CompareAndSetState(c, next) {
			return true
		}
	}
}

// Semaphore maintains a count of permits. Acquire blocks until enough
// permits are available and takes them; Release adds permits, possibly
// releasing blocked acquirers. Permits are not tied to goroutines, so any
// goroutine may release them.
//
// A fair semaphore grants permits in arrival order, except for
// [Semaphore.TryAcquire], which always barges.
type Semaphore struct {
	sync *qsync.Synchronizer
	fair bool
}

// NewSemaphore creates a [Semaphore] with the given number of permits, which
// may be negative, in which case releases must occur before any acquire
// succeeds.
func NewSemaphore(permits int64, fair bool) *Semaphore {
	return &Semaphore{
		sync: qsync.New(semaphorePolicy{fair: fair}, permits),
		fair: fair,
	}
}

// Acquire takes one permit, blocking until one is available. It returns an
// error wrapping [syncerrors.ErrInterrupted] if ctx ends first.
func (s *Semaphore) Acquire(ctx context.Context) error {
	return s.AcquireN(ctx, 1)
}

// AcquireN takes n permits, blocking until all are available.
func (s *Semaphore) AcquireN(ctx context.Context, n int64) error {
	checkPermits(n)

	return s.sync.AcquireSharedContext(ctx, n)
}

// AcquireUninterruptibly takes n permits, blocking until all are available.
func (s *Semaphore) AcquireUninterruptibly(n int64) {
	checkPermits(n)

	s.sync.AcquireShared(n)
}

// TryAcquire takes n permits only if they are all available.
func (s *Semaphore) TryAcquire(n int64) bool {
	checkPermits(n)

	return bargeAcquireShared(s.sync, n) >= 0
}

// TryAcquireTimeout takes n permits, giving up after timeout.
func (s *Semaphore) TryAcquireTimeout(ctx context.Context, n int64, timeout time.Duration) (bool, error) {
	checkPermits(n)

	return s.sync.TryAcquireSharedTimeout(ctx, n, timeout)
}

// Release returns n permits.
func (s *Semaphore) Release(n int64) {
	checkPermits(n)

	s.sync.ReleaseShared(n)
}

// AvailablePermits returns the current number of permits.
func (s *Semaphore) AvailablePermits() int64 {
	return s.sync.State()
}

// DrainPermits takes every immediately available permit and returns how many
// were taken.
func (s *Semaphore) DrainPermits() int64 {
	for {
		c := s.sync.State()
		if c <= 0 || s.sync.CompareAndSetState(c, 0) {
			return max(c, 0)
		}
	}
}

// ReducePermits removes n permits without blocking. The count may become
// negative.
func (s *Semaphore) ReducePermits(n int64) {
	checkPermits(n)

	for {
		c := s.sync.State()

		next := c - n
		if next > c {
			panic(fmt.Errorf("%w: semaphore permit underflow", syncerrors.ErrHoldOverflow))
		}

		if s.sync.CompareAndSetState(c, next) {
			return
		}
	}
}

// IsFair reports whether permits are granted in arrival order.
func (s *Semaphore) IsFair() bool {
	return s.fair
}

// HasQueuedThreads reports whether any goroutine may be waiting for permits.
func (s *Semaphore) HasQueuedThreads() bool {
	return s.sync.HasQueuedThreads()
}

// QueueLength returns an estimate of the number of waiting goroutines.
func (s *Semaphore) QueueLength() int {
	return s.sync.QueueLength()
}

func (s *Semaphore) String() string {
	return fmt.Sprintf("syncs.Semaphore{permits = %d}", s.AvailablePermits())
}

func checkPermits(n int64) {
	if n < 0 {
		panic("syncs: negative permit count")
	}
}
