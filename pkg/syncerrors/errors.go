package syncerrors

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrIllegalState indicates an operation was invoked by a goroutine that
	// does not hold the required exclusive state.
	ErrIllegalState = errors.New("illegal monitor state")

	// ErrInterrupted indicates a blocking operation was abandoned because its
	// context ended.
	ErrInterrupted = errors.New("interrupted")

	// ErrUnsupported indicates an operation or hook that is not implemented.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrHoldOverflow indicates a hold or permit count exceeded its maximum.
	ErrHoldOverflow = errors.New("maximum count exceeded")

	// ErrTimeout indicates a bounded wait elapsed where elapsing is an error
	// for the caller (barriers), rather than a false result.
	ErrTimeout = errors.New("timed out")

	// ErrBrokenBarrier indicates a barrier was broken while waiting.
	ErrBrokenBarrier = errors.New("broken barrier")

	// ErrRejected indicates a task could not be admitted.
	ErrRejected = errors.New("task rejected")

	// ErrShutdown indicates the executor no longer accepts tasks.
	ErrShutdown = fmt.Errorf("executor shut down: %w", ErrRejected)

	// ErrCancelled indicates a task was cancelled before it completed.
	ErrCancelled = errors.New("cancelled")

	// ErrClosed indicates an operation on a closed queue.
	ErrClosed = errors.New("queue closed")
)

// Interrupted wraps the cause of ctx with [ErrInterrupted].
func Interrupted(ctx context.Context) error {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = ctx.Err()
	}

	return fmt.Errorf("%w: %w", ErrInterrupted, cause)
}

// IllegalState returns an error wrapping [ErrIllegalState] with a message.
func IllegalState(msg string) error {
	return fmt.Errorf("%w: %s", ErrIllegalState, msg)
}

// Unsupported returns an error wrapping [ErrUnsupported] naming op.
func Unsupported(op string) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, op)
}
