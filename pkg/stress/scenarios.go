package stress

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MacroPower/qsync/pkg/executor"
	"github.com/MacroPower/qsync/pkg/locks"
	"github.com/MacroPower/qsync/pkg/queue"
	"github.com/MacroPower/qsync/pkg/syncerrors"
	"github.com/MacroPower/qsync/pkg/syncs"
)

// contend runs fn on cfg.Goroutines goroutines and waits for them all. The
// first error cancels the context passed to the others.
func contend(ctx context.Context, cfg Config, fn func(ctx context.Context, id int) error) error {
	g, ctx := errgroup.WithContext(ctx)

	for id := range cfg.Goroutines {
		g.Go(func() error { return fn(ctx, id) })
	}

	//nolint:wrapcheck // Errors come from this package.
	return g.Wait()
}

// waitFor polls cond until it holds or ctx ends.
func waitFor(ctx context.Context, cond func() bool) error {
	for !cond() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting: %w", ctx.Err())
		case <-time.After(100 * time.Microsecond):
		}
	}

	return nil
}

func runMutex(ctx context.Context, cfg Config) (int64, error) {
	l := locks.NewReentrantLock(cfg.Fair)

	var counter, inside int64

	err := contend(ctx, cfg, func(ctx context.Context, _ int) error {
		for range cfg.Iterations {
			if err := l.LockContext(ctx); err != nil {
				return err
			}

			inside++
			if inside != 1 {
				l.Unlock()

				return violation("%d goroutines inside the lock", inside)
			}

			counter++
			inside--
			l.Unlock()
		}

		return nil
	})
	if err != nil {
		return counter, err
	}

	if want := int64(cfg.Goroutines * cfg.Iterations); counter != want {
		return counter, violation("counter is %d, want %d", counter, want)
	}

	return counter, nil
}

func runFairMutex(ctx context.Context, cfg Config) (int64, error) {
	rounds := max(1, cfg.Iterations/100)

	var ops int64

	for range rounds {
		l := locks.NewReentrantLock(true)
		l.Lock()

		order := make([]int, 0, cfg.Goroutines)

		g, gctx := errgroup.WithContext(ctx)
		for id := range cfg.Goroutines {
			g.Go(func() error {
				if err := l.LockContext(gctx); err != nil {
					return err
				}

				order = append(order, id)
				l.Unlock()

				return nil
			})

			if err := waitFor(ctx, func() bool { return l.QueueLength() == id+1 }); err != nil {
				l.Unlock()
				_ = g.Wait()

				return ops, err
			}
		}

		l.Unlock()

		if err := g.Wait(); err != nil {
			return ops, fmt.Errorf("fair lock waiter: %w", err)
		}

		for i, id := range order {
			if i != id {
				return ops, violation("waiter %d acquired in position %d", id, i)
			}
		}

		ops += int64(len(order))
	}

	return ops, nil
}

func runRWLock(ctx context.Context, cfg Config) (int64, error) {
	l := locks.NewReentrantRWLock(cfg.Fair)

	var (
		a, b int64
		ops  atomic.Int64
	)

	err := contend(ctx, cfg, func(ctx context.Context, id int) error {
		for i := range cfg.Iterations {
			if (id+i)%4 == 0 {
				if err := l.WriteLock().LockContext(ctx); err != nil {
					return err
				}

				a++
				b++
				l.Unlock()
			} else {
				if err := l.ReadLock().LockContext(ctx); err != nil {
					return err
				}

				seenA, seenB := a, b
				l.RUnlock()

				if seenA != seenB {
					return violation("reader saw %d != %d", seenA, seenB)
				}
			}

			ops.Add(1)
		}

		return nil
	})

	return ops.Load(), err
}

func runSemaphore(ctx context.Context, cfg Config) (int64, error) {
	permits := int64(max(1, cfg.Goroutines/2))
	s := syncs.NewSemaphore(permits, cfg.Fair)

	var (
		holders atomic.Int64
		ops     atomic.Int64
	)

	err := contend(ctx, cfg, func(ctx context.Context, _ int) error {
		for range cfg.Iterations {
			if err := s.Acquire(ctx); err != nil {
				return err
			}

			n := holders.Add(1)
			holders.Add(-1)
			s.Release(1)

			if n > permits {
				return violation("%d holders of %d permits", n, permits)
			}

			ops.Add(1)
		}

		return nil
	})
	if err != nil {
		return ops.Load(), err
	}

	if got := s.AvailablePermits(); got != permits {
		return ops.Load(), violation("%d permits left, want %d", got, permits)
	}

	return ops.Load(), nil
}

func runLatch(ctx context.Context, cfg Config) (int64, error) {
	rounds := max(1, cfg.Iterations/10)

	var ops atomic.Int64

	for range rounds {
		l := syncs.NewCountDownLatch(cfg.Goroutines)

		err := contend(ctx, cfg, func(ctx context.Context, _ int) error {
			l.CountDown()

			if err := l.Await(ctx); err != nil {
				return err
			}

			ops.Add(1)

			return nil
		})
		if err != nil {
			return ops.Load(), err
		}

		if l.Count() != 0 {
			return ops.Load(), violation("latch count is %d after release", l.Count())
		}
	}

	return ops.Load(), nil
}

func runBarrier(ctx context.Context, cfg Config) (int64, error) {
	rounds := max(1, cfg.Iterations/10)

	var trips atomic.Int64

	b := syncs.NewCyclicBarrier(cfg.Goroutines, func() error {
		trips.Add(1)

		return nil
	})

	err := contend(ctx, cfg, func(ctx context.Context, _ int) error {
		for range rounds {
			if _, err := b.Await(ctx); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return trips.Load(), err
	}

	if got := trips.Load(); got != int64(rounds) {
		return got, violation("barrier tripped %d times, want %d", got, rounds)
	}

	return trips.Load() * int64(cfg.Goroutines), nil
}

func runCondition(ctx context.Context, cfg Config) (int64, error) {
	q := queue.NewBlockingQueue[int64](max(1, cfg.Goroutines/2), cfg.Fair)

	producers := max(1, cfg.Goroutines/2)
	consumers := max(1, cfg.Goroutines-producers)
	total := int64(producers * cfg.Iterations)

	var (
		sum, taken atomic.Int64
		want       int64
	)

	for i := int64(1); i <= int64(cfg.Iterations); i++ {
		want += i
	}

	want *= int64(producers)

	g, gctx := errgroup.WithContext(ctx)

	for range producers {
		g.Go(func() error {
			for i := int64(1); i <= int64(cfg.Iterations); i++ {
				if err := q.Put(gctx, i); err != nil {
					return err
				}
			}

			return nil
		})
	}

	for range consumers {
		g.Go(func() error {
			for {
				v, err := q.Take(gctx)
				if errors.Is(err, syncerrors.ErrClosed) {
					return nil
				}

				if err != nil {
					return err
				}

				sum.Add(v)

				if taken.Add(1) == total {
					q.Close()
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return taken.Load(), err
	}

	if sum.Load() != want {
		return taken.Load(), violation("consumed sum %d, want %d", sum.Load(), want)
	}

	return taken.Load(), nil
}

func runCancellation(ctx context.Context, cfg Config) (int64, error) {
	rounds := max(1, cfg.Iterations/100)
	l := locks.NewReentrantLock(cfg.Fair)

	var ops atomic.Int64

	for range rounds {
		l.Lock()

		err := contend(ctx, cfg, func(ctx context.Context, id int) error {
			if id%2 == 0 {
				ok, err := l.TryLockTimeout(ctx, time.Millisecond)
				if err != nil {
					return err
				}

				if ok {
					l.Unlock()

					return violation("timed waiter acquired a held lock")
				}
			} else {
				wctx, cancel := context.WithTimeout(ctx, time.Millisecond)
				defer cancel()

				err := l.LockContext(wctx)
				if err == nil {
					l.Unlock()

					return violation("cancelled waiter acquired a held lock")
				}

				if !errors.Is(err, syncerrors.ErrInterrupted) {
					return err
				}
			}

			ops.Add(1)

			return nil
		})

		l.Unlock()

		if err != nil {
			return ops.Load(), err
		}

		// Every waiter gave up, so the lock must be immediately available.
		if !l.TryLock() {
			return ops.Load(), violation("lock unavailable after all waiters gave up")
		}

		l.Unlock()

		if l.QueueLength() != 0 {
			return ops.Load(), violation("%d goroutines still queued", l.QueueLength())
		}
	}

	return ops.Load(), nil
}

func runExecutor(ctx context.Context, cfg Config) (int64, error) {
	pool := executor.New(
		executor.WithWorkers(cfg.Goroutines),
		executor.WithQueueSize(cfg.Iterations),
	)
	defer pool.ShutdownNow()

	fns := make([]executor.Callable, cfg.Iterations)
	for i := range fns {
		fns[i] = func(context.Context) (any, error) { return int64(i), nil }
	}

	results, err := pool.InvokeAll(ctx, fns)
	if err != nil {
		return 0, fmt.Errorf("invoke all: %w", err)
	}

	var sum int64
	for _, r := range results {
		v, ok := r.(int64)
		if !ok {
			return 0, violation("unexpected result %v", r)
		}

		sum += v
	}

	n := int64(cfg.Iterations)
	if want := n * (n - 1) / 2; sum != want {
		return n, violation("results sum to %d, want %d", sum, want)
	}

	pool.Shutdown()

	ok, err := pool.AwaitTermination(ctx, 10*time.Second)
	if err != nil {
		return n, fmt.Errorf("await termination: %w", err)
	}

	if !ok {
		return n, violation("pool did not terminate")
	}

	if got := pool.CompletedTaskCount(); got != n {
		return n, violation("pool completed %d tasks, want %d", got, n)
	}

	return n, nil
}
