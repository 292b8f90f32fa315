// Package stress runs contention scenarios against the synchronizers in this
// module and reports whether their guarantees held.
//
// Each scenario starts a number of contending goroutines, drives a primitive
// through a number of iterations, and checks an invariant: mutual exclusion,
// FIFO ordering under a fair policy, bounded permits, no lost wake-ups, and
// that cancelled waiters never strand the queue. A [Runner] executes
// scenarios in order, publishing events to subscribers so that progress can
// be displayed, and returns a [Report] that can be rendered as text, JSON or
// YAML.
package stress
