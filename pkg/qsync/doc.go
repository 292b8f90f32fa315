// Package qsync provides a queue-based synchronizer: a framework for blocking
// locks and related synchronizers that rely on a FIFO wait queue and a single
// integer of state.
//
// A [Synchronizer] owns the state and the wait queue. What the state means
// (locked or unlocked, a hold count, packed reader and writer counts, a
// number of permits) is defined entirely by the [Policy] it is constructed
// with. The synchronizer calls back into the policy to interpret the state and
// manages all queuing, parking and unparking itself.
//
// Two modes are supported. In exclusive mode at most one goroutine holds the
// state; in shared mode several may. Waiters of both modes share one queue.
// Acquisition is not strictly FIFO: a goroutine that has not yet queued may
// barge ahead of queued waiters unless the policy refuses, for example by
// consulting [Synchronizer.HasQueuedPredecessors].
//
// A [ConditionObject] lets the exclusive holder atomically give up the state
// and wait to be signalled, after which it is moved back onto the wait queue
// and reacquires exactly the state it released.
//
// Blocking calls come in three flavours. Plain calls ignore interruption.
// Calls that take a [context.Context] return an error wrapping
// [syncerrors.ErrInterrupted] when the context ends first. Timed calls return
// false when the timeout elapses; a timeout is not an error.
//
// The state, queue links and node statuses are only ever mutated with atomic
// compare-and-swap; no mutex is used anywhere in this package.
package qsync
