package qsync

import "github.com/MacroPower/qsync/pkg/syncerrors"

// Policy interprets the state of a [Synchronizer].
//
// Exclusive synchronizers implement TryAcquire, TryRelease and
// IsHeldExclusively; shared synchronizers implement TryAcquireShared and
// TryReleaseShared. Hooks must not block, and must only inspect or modify the
// state through s. Embed [UnsupportedPolicy] to leave hooks unimplemented.
type Policy interface {
	// TryAcquire attempts to acquire in exclusive mode.
	TryAcquire(s *Synchronizer, arg int64) bool
	// TryRelease attempts to release in exclusive mode, reporting whether the
	// state is now fully released so that waiters may proceed.
	TryRelease(s *Synchronizer, arg int64) bool
	// IsHeldExclusively reports whether the calling goroutine holds the state
	// exclusively. Conditions use it to validate callers.
	IsHeldExclusively(s *Synchronizer) bool
	// TryAcquireShared attempts to acquire in shared mode. A negative result
	// is a failure, zero is a success after which no further shared
	// acquisition can succeed, and a positive result is a success after which
	// later shared acquisitions might also succeed.
	TryAcquireShared(s *Synchronizer, arg int64) int64
	// TryReleaseShared attempts to release in shared mode, reporting whether
	// a waiting acquisition may now succeed.
	TryReleaseShared(s *Synchronizer, arg int64) bool
}

// UnsupportedPolicy implements every [Policy] hook by panicking with an error
// wrapping [syncerrors.ErrUnsupported].
type UnsupportedPolicy struct{}

func (UnsupportedPolicy) TryAcquire(*Synchronizer, int64) bool {
	panic(syncerrors.Unsupported("TryAcquire"))
}

func (UnsupportedPolicy) TryRelease(*Synchronizer, int64) bool {
	panic(syncerrors.Unsupported("TryRelease"))
}

func (UnsupportedPolicy) IsHeldExclusively(*Synchronizer) bool {
	panic(syncerrors.Unsupported("IsHeldExclusively"))
}

func (UnsupportedPolicy) TryAcquireShared(*Synchronizer, int64) int64 {
	panic(syncerrors.Unsupported("TryAcquireShared"))
}

func (UnsupportedPolicy) TryReleaseShared(*Synchronizer, int64) bool {
	panic(syncerrors.Unsupported("TryReleaseShared"))
}
