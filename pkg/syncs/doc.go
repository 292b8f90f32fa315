// Package syncs provides synchronization aids built on [qsync.Synchronizer]
// and the locks in package locks.
//
// [CountDownLatch] lets goroutines wait until a count reaches zero.
// [Semaphore] maintains a set of permits. [CyclicBarrier] lets a fixed number
// of goroutines wait for each other, repeatedly. [KeyLock] and [KeyRWLock]
// provide per-key locking, allowing independent keys to be locked
// concurrently while serializing access to the same key.
package syncs
