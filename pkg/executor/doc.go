// Package executor runs tasks on a fixed-size pool of worker goroutines.
//
// Tasks are handed to workers through a bounded [queue.BlockingQueue]. The
// pool's lifecycle is guarded by a [locks.ReentrantLock], and
// [Pool.AwaitTermination] waits on a condition of that lock. Results of
// submitted functions are delivered through a [Future], which completes via
// a [syncs.CountDownLatch].
//
// Tasks receive a context that is cancelled by [Pool.ShutdownNow] and by
// [Future.Cancel]; long-running tasks should watch it.
package executor
