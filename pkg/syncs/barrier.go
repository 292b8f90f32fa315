package syncs

import (
	"context"
	"fmt"
	"time"

	"github.com/MacroPower/qsync/pkg/locks"
	"github.com/MacroPower/qsync/pkg/qsync"
	"github.com/MacroPower/qsync/pkg/syncerrors"
)

// generation is one use of a barrier. It changes whenever the barrier trips
// or is reset.
type generation struct {
	broken bool
}

// CyclicBarrier lets a fixed number of goroutines, the parties, wait for
// each other to arrive. It is reusable once the waiting goroutines are
// released.
//
// The barrier is all-or-none: if one waiter leaves early through
// interruption, timeout or a failing barrier action, every other waiter in
// the same generation fails with [syncerrors.ErrBrokenBarrier], and so does
// every later Await until [CyclicBarrier.Reset].
type CyclicBarrier struct {
	lock *locks.ReentrantLock
	trip *qsync.ConditionObject

	action  func() error
	parties int

	gen   *generation
	count int
}

// NewCyclicBarrier creates a [CyclicBarrier] for the given number of
// parties. If action is not nil, the last goroutine to arrive runs it before
// the others are released. It panics if parties is not positive.
func NewCyclicBarrier(parties int, action func() error) *CyclicBarrier {
	if parties <= 0 {
		panic("syncs: barrier needs at least one party")
	}

	l := locks.NewReentrantLock(false)

	return &CyclicBarrier{
		lock:    l,
		trip:    l.NewCondition(),
		action:  action,
		parties: parties,
		gen:     &generation{},
		count:   parties,
	}
}

// Await waits until every party has called Await on this barrier. It returns
// the arrival index of the caller: parties-1 for the first to arrive and 0
// for the last.
func (b *CyclicBarrier) Await(ctx context.Context) (int, error) {
	return b.await(ctx, false, 0)
}

// AwaitTimeout is like [CyclicBarrier.Await] but breaks the barrier and
// returns an error wrapping [syncerrors.ErrTimeout] if timeout elapses first.
func (b *CyclicBarrier) AwaitTimeout(ctx context.Context, timeout time.Duration) (int, error) {
	return b.await(ctx, true, timeout)
}

func (b *CyclicBarrier) await(ctx context.Context, timed bool, remaining time.Duration) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	g := b.gen

	if g.broken {
		return 0, syncerrors.ErrBrokenBarrier
	}

	if ctx.Err() != nil {
		b.breakBarrier()

		return 0, syncerrors.Interrupted(ctx)
	}

	b.count--

	index := b.count
	if index == 0 {
		if err := b.runAction(); err != nil {
			b.breakBarrier()

			return 0, fmt.Errorf("%w: barrier action: %w", syncerrors.ErrBrokenBarrier, err)
		}

		b.nextGeneration()

		return 0, nil
	}

	for {
		var err error

		switch {
		case !timed:
			err = b.trip.Await(ctx)
		case remaining > 0:
			remaining, err = b.trip.AwaitNanos(ctx, remaining)
		}

		// An interruption after the generation completed or broke is not
		// this waiter's failure; fall through to the normal outcome.
		if err != nil && g == b.gen && !g.broken {
			b.breakBarrier()

			return 0, err
		}

		if g.broken {
			return 0, syncerrors.ErrBrokenBarrier
		}

		if g != b.gen {
			return index, nil
		}

		if timed && remaining <= 0 {
			b.breakBarrier()

			return 0, syncerrors.ErrTimeout
		}
	}
}

// runAction runs the barrier action, turning a panic into an error.
func (b *CyclicBarrier) runAction() (err error) {
	if b.action == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return b.action()
}

// nextGeneration wakes every waiter and starts a new generation.
func (b *CyclicBarrier) nextGeneration() {
	b.trip.SignalAll()
	b.count = b.parties
	b.gen = &generation{}
}

// breakBarrier marks the current generation broken and wakes every waiter.
func (b *CyclicBarrier) breakBarrier() {
	b.gen.broken = true
	b.count = b.parties
	b.trip.SignalAll()
}

// Reset breaks the current generation, failing any waiting goroutines with
// [syncerrors.ErrBrokenBarrier], and starts a new one.
func (b *CyclicBarrier) Reset() {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.breakBarrier()
	b.nextGeneration()
}

// IsBroken reports whether the current generation is broken.
func (b *CyclicBarrier) IsBroken() bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.gen.broken
}

// NumberWaiting returns the number of parties currently waiting.
func (b *CyclicBarrier) NumberWaiting() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.parties - b.count
}

// Parties returns the number of parties required to trip the barrier.
func (b *CyclicBarrier) Parties() int {
	return b.parties
}
