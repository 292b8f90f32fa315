package locks_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacroPower/qsync/pkg/locks"
	"github.com/MacroPower/qsync/pkg/park"
	"github.com/MacroPower/qsync/pkg/syncerrors"
)

func TestRWLockReadersShare(t *testing.T) {
	t.Parallel()

	l := locks.NewReentrantRWLock(false)

	l.RLock()
	l.RLock()
	assert.Equal(t, 2, l.ReadHoldCount())

	assert.True(t, elsewhere(func() bool {
		ok := l.ReadLock().TryLock()
		assert.Equal(t, 2+1, l.ReadLockCount())
		assert.Equal(t, 1, l.ReadHoldCount())
		l.RUnlock()

		return ok
	}))

	assert.False(t, elsewhere(l.WriteLock().TryLock))
	assert.False(t, l.IsWriteLocked())
	assert.Equal(t, "locks.ReentrantRWLock{write locks = 0, read locks = 2}", l.String())

	l.RUnlock()
	l.RUnlock()

	assert.Equal(t, 0, l.ReadLockCount())
	assert.Equal(t, 0, l.ReadHoldCount())
}

func TestRWLockWriterExcludes(t *testing.T) {
	t.Parallel()

	l := locks.NewReentrantRWLock(false)

	l.Lock()
	l.Lock()
	assert.True(t, l.IsWriteLocked())
	assert.True(t, l.IsWriteLockedByCurrentThread())
	assert.True(t, l.WriteLock().IsHeldByCurrentThread())
	assert.Equal(t, 2, l.WriteHoldCount())
	assert.Equal(t, park.Current(), l.Owner())
	assert.Contains(t, l.WriteLock().String(), "locked by")

	assert.False(t, elsewhere(l.ReadLock().TryLock))
	assert.False(t, elsewhere(l.WriteLock().TryLock))
	assert.Equal(t, 0, elsewhere(l.WriteHoldCount))

	l.Unlock()
	l.Unlock()

	assert.Equal(t, park.NoThread, l.Owner())
	assert.Equal(t, "locks.WriteLock{unlocked}", l.WriteLock().String())
}

func TestRWLockDowngrade(t *testing.T) {
	t.Parallel()

	l := locks.NewReentrantRWLock(false)

	l.Lock()
	l.RLock()
	l.Unlock()

	assert.False(t, l.IsWriteLocked())
	assert.Equal(t, 1, l.ReadHoldCount())

	assert.True(t, elsewhere(func() bool {
		ok := l.ReadLock().TryLock()
		l.RUnlock()

		return ok
	}))
	assert.False(t, elsewhere(l.WriteLock().TryLock))

	l.RUnlock()
	assert.Equal(t, 0, l.ReadLockCount())
}

func TestRWLockMisusePanics(t *testing.T) {
	t.Parallel()

	l := locks.NewReentrantRWLock(false)

	requirePanicIs(t, syncerrors.ErrIllegalState, l.RUnlock)
	requirePanicIs(t, syncerrors.ErrIllegalState, l.Unlock)
	requirePanicIs(t, syncerrors.ErrUnsupported, func() { l.ReadLock().NewCondition() })

	l.RLock()
	elsewhere(func() struct{} {
		requirePanicIs(t, syncerrors.ErrIllegalState, l.RUnlock)

		return struct{}{}
	})
	assert.Equal(t, 1, l.ReadLockCount())
	l.RUnlock()
}

func TestNonFairReaderYieldsToQueuedWriter(t *testing.T) {
	t.Parallel()

	l := locks.NewReentrantRWLock(false)
	l.RLock()

	written := make(chan struct{})

	go func() {
		l.Lock()
		l.Unlock()
		close(written)
	}()

	waitQueued(t, l, 1)
	assert.Len(t, l.QueuedWriters(), 1)
	assert.Empty(t, l.QueuedReaders())

	// A new reader queues behind the writer.
	ok := elsewhere(func() bool {
		ok, err := l.ReadLock().TryLockTimeout(t.Context(), 30*time.Millisecond)
		assert.NoError(t, err)

		return ok
	})
	assert.False(t, ok)

	// A reentrant reader does not.
	l.RLock()
	assert.Equal(t, 2, l.ReadHoldCount())

	l.RUnlock()
	l.RUnlock()

	select {
	case <-written:
	case <-time.After(5 * time.Second):
		t.Fatal("writer never acquired the lock")
	}
}

func TestRWLockWriteCondition(t *testing.T) {
	t.Parallel()

	l := locks.NewReentrantRWLock(true)
	require.True(t, l.IsFair())

	c := l.WriteLock().NewCondition()

	var flag atomic.Bool

	done := make(chan struct{})

	go func() {
		defer close(done)

		l.Lock()
		defer l.Unlock()

		for !flag.Load() {
			assert.NoError(t, c.Await(t.Context()))
		}
	}()

	require.Eventually(t, func() bool {
		l.Lock()
		defer l.Unlock()

		return l.WaitQueueLength(c) == 1 && l.HasWaiters(c)
	}, 5*time.Second, time.Millisecond)

	l.Lock()
	flag.Store(true)
	c.SignalAll()
	l.Unlock()

	<-done
}

func TestRWLockConsistency(t *testing.T) {
	t.Parallel()

	for _, fair := range []bool{false, true} {
		l := locks.NewReentrantRWLock(fair)

		var (
			wg   sync.WaitGroup
			a, b int
		)

		for range 4 {
			wg.Add(2)

			go func() {
				defer wg.Done()

				for range 200 {
					l.Lock()
					a++
					b++
					l.Unlock()
				}
			}()

			go func() {
				defer wg.Done()

				rl := l.RLocker()
				for range 200 {
					rl.Lock()
					assert.Equal(t, a, b)
					rl.Unlock()
				}
			}()
		}

		wg.Wait()
		assert.Equal(t, 4*200, a)
	}
}
