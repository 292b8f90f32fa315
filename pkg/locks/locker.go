package locks

import (
	"context"
	"sync"
	"time"

	"github.com/MacroPower/qsync/pkg/qsync"
)

// Locker is a [sync.Locker] with interruptible, timed and barging forms of
// Lock, and support for condition variables.
// See [ReentrantLock] and [WriteLock] for implementations.
type Locker interface {
	sync.Locker

	// LockContext acquires the lock, returning an error wrapping
	// [syncerrors.ErrInterrupted] if ctx ends first.
	LockContext(ctx context.Context) error
	// TryLock acquires the lock only if it is free at the time of the call.
	TryLock() bool
	// TryLockTimeout acquires the lock, giving up after timeout.
	TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error)
	// NewCondition returns a condition bound to the lock.
	NewCondition() *qsync.ConditionObject
}

var (
	_ Locker = (*ReentrantLock)(nil)
	_ Locker = (*WriteLock)(nil)
)
