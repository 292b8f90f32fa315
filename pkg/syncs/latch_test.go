package syncs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacroPower/qsync/pkg/syncerrors"
	"github.com/MacroPower/qsync/pkg/syncs"
)

func TestCountDownLatch(t *testing.T) {
	t.Parallel()

	l := syncs.NewCountDownLatch(3)
	assert.Equal(t, "syncs.CountDownLatch{count = 3}", l.String())

	const waiters = 5

	var wg sync.WaitGroup
	for range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()

			assert.NoError(t, l.Await(t.Context()))
		}()
	}

	for i := 3; i > 0; i-- {
		assert.Equal(t, i, l.Count())
		l.CountDown()
	}

	wg.Wait()
	assert.Equal(t, 0, l.Count())

	// Further count downs and waits are no-ops.
	l.CountDown()
	l.Wait()
	assert.Equal(t, 0, l.Count())
}

func TestCountDownLatchTimeoutAndInterrupt(t *testing.T) {
	t.Parallel()

	l := syncs.NewCountDownLatch(1)

	ok, err := l.AwaitTimeout(t.Context(), 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, l.Await(ctx), syncerrors.ErrInterrupted)
	require.ErrorIs(t, l.Await(ctx), context.DeadlineExceeded)

	l.CountDown()

	ok, err = l.AwaitTimeout(t.Context(), time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewCountDownLatchNegative(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { syncs.NewCountDownLatch(-1) })
}
