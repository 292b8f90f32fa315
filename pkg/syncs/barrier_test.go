package syncs_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacroPower/qsync/pkg/syncerrors"
	"github.com/MacroPower/qsync/pkg/syncs"
)

func TestCyclicBarrierTripsRepeatedly(t *testing.T) {
	t.Parallel()

	const (
		parties = 4
		rounds  = 3
	)

	var trips atomic.Int32

	b := syncs.NewCyclicBarrier(parties, func() error {
		trips.Add(1)

		return nil
	})
	assert.Equal(t, parties, b.Parties())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		indices = map[int]int{}
	)

	for range parties {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for range rounds {
				i, err := b.Await(t.Context())
				if !assert.NoError(t, err) {
					return
				}

				mu.Lock()
				indices[i]++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(rounds), trips.Load())
	assert.False(t, b.IsBroken())
	assert.Equal(t, 0, b.NumberWaiting())

	for i := range parties {
		assert.Equal(t, rounds, indices[i], "arrival index %d", i)
	}
}

func TestCyclicBarrierBreaks(t *testing.T) {
	t.Parallel()

	waitFor := func(t *testing.T, b *syncs.CyclicBarrier, n int) {
		t.Helper()

		require.Eventually(t, func() bool { return b.NumberWaiting() == n }, 5*time.Second, time.Millisecond)
	}

	t.Run("interrupt", func(t *testing.T) {
		t.Parallel()

		b := syncs.NewCyclicBarrier(3, nil)

		ctx, cancel := context.WithCancel(t.Context())
		interrupted := make(chan error)
		broken := make(chan error)

		go func() {
			_, err := b.Await(ctx)
			interrupted <- err
		}()

		waitFor(t, b, 1)

		go func() {
			_, err := b.Await(t.Context())
			broken <- err
		}()

		waitFor(t, b, 2)
		cancel()

		require.ErrorIs(t, <-interrupted, syncerrors.ErrInterrupted)
		require.ErrorIs(t, <-broken, syncerrors.ErrBrokenBarrier)
		assert.True(t, b.IsBroken())

		_, err := b.Await(t.Context())
		require.ErrorIs(t, err, syncerrors.ErrBrokenBarrier)

		b.Reset()
		assert.False(t, b.IsBroken())
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		b := syncs.NewCyclicBarrier(2, nil)

		_, err := b.AwaitTimeout(t.Context(), 20*time.Millisecond)
		require.ErrorIs(t, err, syncerrors.ErrTimeout)
		assert.True(t, b.IsBroken())
	})

	t.Run("failing action", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("boom")
		b := syncs.NewCyclicBarrier(2, func() error { return errBoom })

		first := make(chan error)
		go func() {
			_, err := b.Await(t.Context())
			first <- err
		}()

		waitFor(t, b, 1)

		_, err := b.Await(t.Context())
		require.ErrorIs(t, err, errBoom)
		require.ErrorIs(t, err, syncerrors.ErrBrokenBarrier)
		require.ErrorIs(t, <-first, syncerrors.ErrBrokenBarrier)
	})

	t.Run("reset while waiting", func(t *testing.T) {
		t.Parallel()

		b := syncs.NewCyclicBarrier(2, nil)

		waiting := make(chan error)
		go func() {
			_, err := b.Await(t.Context())
			waiting <- err
		}()

		waitFor(t, b, 1)
		b.Reset()

		require.ErrorIs(t, <-waiting, syncerrors.ErrBrokenBarrier)
		assert.False(t, b.IsBroken())
		assert.Equal(t, 0, b.NumberWaiting())
	})
}

func TestNewCyclicBarrierNeedsParties(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { syncs.NewCyclicBarrier(0, nil) })
}
