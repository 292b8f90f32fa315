// Package syncerrors provides error definitions shared by the synchronizer
// and every primitive built on it.
//
// Misuse (releasing a lock that is not held, touching a condition without
// holding its lock) is reported by panicking with an error that wraps
// [ErrIllegalState], following the convention of the standard sync package.
// Interruption is reported as a returned error wrapping [ErrInterrupted].
package syncerrors
