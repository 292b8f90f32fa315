// Package locks provides reentrant mutual-exclusion and read/write locks built
// on [qsync.Synchronizer].
//
// Unlike [sync.Mutex] and [sync.RWMutex], the locks in this package record
// which goroutine holds them, may be reacquired by that goroutine, support
// fair (FIFO) ordering, context-aware and timed acquisition, and condition
// variables.
//
// Misuse, such as unlocking a lock the calling goroutine does not hold,
// panics with an error wrapping [syncerrors.ErrIllegalState].
package locks
