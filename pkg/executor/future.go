package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MacroPower/qsync/pkg/syncerrors"
	"github.com/MacroPower/qsync/pkg/syncs"
)

// Callable is a unit of work that produces a result.
type Callable func(ctx context.Context) (any, error)

const (
	futurePending int32 = iota
	futureRunning
	futureDone
	futureCancelled
)

// Future is the pending result of a [Callable] submitted with [Pool.Submit].
type Future struct {
	done  *syncs.CountDownLatch
	state atomic.Int32

	// ctx is cancelled by Cancel, interrupting a running callable.
	ctx    context.Context //nolint:containedctx // Cancellation signal only.
	cancel context.CancelFunc

	value any
	err   error
}

func newFuture() *Future {
	ctx, cancel := context.WithCancel(context.Background())

	return &Future{
		done:   syncs.NewCountDownLatch(1),
		ctx:    ctx,
		cancel: cancel,
	}
}

// run executes fn unless the future was cancelled first. A panic in fn
// becomes the future's error.
func (f *Future) run(ctx context.Context, fn Callable) {
	if !f.state.CompareAndSwap(futurePending, futureRunning) {
		return
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	unregister := context.AfterFunc(f.ctx, stop)
	defer unregister()

	v, err := call(ctx, fn)

	if f.state.CompareAndSwap(futureRunning, futureDone) {
		f.value, f.err = v, err
		f.done.CountDown()
	}
}

func call(ctx context.Context, fn Callable) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	return fn(ctx)
}

// Get waits for the result. It returns an error wrapping
// [syncerrors.ErrCancelled] if the future was cancelled, and an error
// wrapping [syncerrors.ErrInterrupted] if ctx ended first.
func (f *Future) Get(ctx context.Context) (any, error) {
	if err := f.done.Await(ctx); err != nil {
		return nil, err
	}

	return f.result()
}

// GetTimeout is like [Future.Get] but returns an error wrapping
// [syncerrors.ErrTimeout] if the result is not ready after timeout.
func (f *Future) GetTimeout(ctx context.Context, timeout time.Duration) (any, error) {
	ok, err := f.done.AwaitTimeout(ctx, timeout)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("%w: waiting for result", syncerrors.ErrTimeout)
	}

	return f.result()
}

func (f *Future) result() (any, error) {
	if f.state.Load() == futureCancelled {
		return nil, syncerrors.ErrCancelled
	}

	return f.value, f.err
}

// Cancel attempts to cancel the callable. A pending callable never runs; a
// running one has its context cancelled. It returns false if the future had
// already completed or been cancelled.
func (f *Future) Cancel() bool {
	for {
		s := f.state.Load()
		if s == futureDone || s == futureCancelled {
			return false
		}

		if f.state.CompareAndSwap(s, futureCancelled) {
			f.cancel()
			f.done.CountDown()

			return true
		}
	}
}

// IsDone reports whether the future completed, failed or was cancelled.
func (f *Future) IsDone() bool {
	return f.done.Count() == 0
}

// IsCancelled reports whether the future was cancelled before completing.
func (f *Future) IsCancelled() bool {
	return f.state.Load() == futureCancelled
}
