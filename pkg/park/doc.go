// Package park provides the blocking primitive every synchronizer in this
// module suspends on.
//
// A [Parker] is a one-shot binary permit. [Parker.Unpark] makes the permit
// available and never blocks; [Parker.Park] consumes it, blocking until it is
// available. An unpark that happens before the matching park is not lost, and
// redundant unparks collapse into a single permit. All park variants may
// return spuriously, so callers always re-check their exit condition in a
// loop.
//
// A [Thread] identifies a goroutine. Identities are used for ownership
// (reentrant locks) and queue introspection, never for scheduling.
package park
