package syncs

import (
	"context"
	"fmt"
	"time"

	"github.com/MacroPower/qsync/pkg/qsync"
)

type latchPolicy struct {
	qsync.UnsupportedPolicy
}

func (latchPolicy) TryAcquireShared(s *qsync.Synchronizer, _ int64) int64 {
	if s.State() == 0 {
		return 1
	}

	return -1
}

func (latchPolicy) TryReleaseShared(s *qsync.Synchronizer, _ int64) bool {
	for {
		c := s.State()
		if c == 0 {
			return false
		}

		if s.CompareAndSetState(c, c-1) {
			return c == 1
		}
	}
}

// CountDownLatch lets goroutines wait until a count, set at construction,
// reaches zero. The count cannot be reset.
type CountDownLatch struct {
	sync *qsync.Synchronizer
}

// NewCountDownLatch creates a [CountDownLatch] with the given count. It panics
// if count is negative.
func NewCountDownLatch(count int) *CountDownLatch {
	if count < 0 {
		panic("syncs: negative latch count")
	}

	return &CountDownLatch{sync: qsync.New(latchPolicy{}, int64(count))}
}

// Await blocks until the count reaches zero, returning an error wrapping
// [syncerrors.ErrInterrupted] if ctx ends first.
func (l *CountDownLatch) Await(ctx context.Context) error {
	return l.sync.AcquireSharedContext(ctx, 1)
}

// Wait blocks until the count reaches zero.
func (l *CountDownLatch) Wait() {
	l.sync.AcquireShared(1)
}

// AwaitTimeout blocks until the count reaches zero, reporting false if
// timeout elapsed first.
func (l *CountDownLatch) AwaitTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return l.sync.TryAcquireSharedTimeout(ctx, 1, timeout)
}

// CountDown decrements the count, releasing every waiter when it reaches
// zero. It has no effect once the count is zero.
func (l *CountDownLatch) CountDown() {
	l.sync.ReleaseShared(1)
}

// Count returns the current count.
func (l *CountDownLatch) Count() int {
	return int(l.sync.State())
}

func (l *CountDownLatch) String() string {
	return fmt.Sprintf("syncs.CountDownLatch{count = %d}", l.Count())
}
