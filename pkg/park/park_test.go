package park_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacroPower/qsync/pkg/park"
)

func TestUnparkBeforePark(t *testing.T) {
	t.Parallel()

	p := park.New()
	p.Unpark()

	done := make(chan struct{})
	go func() {
		p.Park()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("permit granted before park was lost")
	}
}

func TestRepeatedUnparkIsOnePermit(t *testing.T) {
	t.Parallel()

	p := park.New()
	p.Unpark()
	p.Unpark()
	p.Unpark()

	p.Park()

	err := p.ParkTimeout(t.Context(), 20*time.Millisecond)
	require.NoError(t, err)
}

func TestParkWakesOnUnpark(t *testing.T) {
	t.Parallel()

	p := park.New()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Park()
	}()

	time.Sleep(10 * time.Millisecond)
	p.Unpark()
	wg.Wait()
}

func TestParkContext(t *testing.T) {
	t.Parallel()

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()

		p := park.New()
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		err := p.ParkContext(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("unparked", func(t *testing.T) {
		t.Parallel()

		p := park.New()
		p.Unpark()

		require.NoError(t, p.ParkContext(t.Context()))
	})
}

func TestParkTimeout(t *testing.T) {
	t.Parallel()

	p := park.New()

	start := time.Now()
	err := p.ParkTimeout(t.Context(), 30*time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	assert.NoError(t, p.ParkTimeout(t.Context(), 0))
}

func TestCurrent(t *testing.T) {
	t.Parallel()

	self := park.Current()
	assert.NotEqual(t, park.NoThread, self)
	assert.Equal(t, self, park.Current())

	other := make(chan park.Thread)
	go func() { other <- park.Current() }()

	assert.NotEqual(t, self, <-other)
	assert.Equal(t, "none", park.NoThread.String())
}
