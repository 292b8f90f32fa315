package syncs_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacroPower/qsync/pkg/syncerrors"
	"github.com/MacroPower/qsync/pkg/syncs"
)

func TestKeyLock(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		newLock func() *syncs.KeyLock
	}{
		"with constructor": {
			newLock: func() *syncs.KeyLock { return syncs.NewKeyLock(false) },
		},
		"fair": {
			newLock: func() *syncs.KeyLock { return syncs.NewKeyLock(true) },
		},
		"zero value": {
			newLock: func() *syncs.KeyLock { return &syncs.KeyLock{} },
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			t.Run("lock and unlock same key", func(t *testing.T) {
				t.Parallel()

				kl := tc.newLock()
				kl.Lock("a")
				kl.Lock("a")
				kl.Unlock("a")
				kl.Unlock("a")
				assert.Equal(t, 1, kl.Len())
			})

			t.Run("held key cannot be taken elsewhere", func(t *testing.T) {
				t.Parallel()

				kl := tc.newLock()
				kl.Lock("a")

				result := make(chan bool)
				go func() { result <- kl.TryLock("a") }()
				assert.False(t, <-result)

				ctx, cancel := context.WithCancel(t.Context())
				errs := make(chan error)
				go func() { errs <- kl.LockContext(ctx, "a") }()

				cancel()
				require.ErrorIs(t, <-errs, syncerrors.ErrInterrupted)

				kl.Unlock("a")
			})

			t.Run("independent keys do not block each other", func(t *testing.T) {
				t.Parallel()

				kl := tc.newLock()

				kl.Lock("a")

				// Locking a different key must not block.
				done := make(chan struct{})
				go func() {
					kl.Lock("b")
					kl.Unlock("b")
					close(done)
				}()

				<-done

				kl.Unlock("a")
			})

			t.Run("unlock from another goroutine panics", func(t *testing.T) {
				t.Parallel()

				kl := tc.newLock()
				kl.Lock("a")

				recovered := make(chan any)
				go func() {
					defer func() { recovered <- recover() }()

					kl.Unlock("a")
				}()

				err, ok := (<-recovered).(error)
				require.True(t, ok, "expected a panic with an error value")
				require.ErrorIs(t, err, syncerrors.ErrIllegalState)

				kl.Unlock("a")
			})

			t.Run("same key serializes access", func(t *testing.T) {
				t.Parallel()

				kl := tc.newLock()

				counter := 0

				const n = 100

				var wg sync.WaitGroup
				wg.Add(n)

				for range n {
					go func() {
						defer wg.Done()

						kl.Lock("key")
						defer kl.Unlock("key")

						counter++
					}()
				}

				wg.Wait()

				assert.Equal(t, n, counter)
			})

			t.Run("concurrent keys are independent", func(t *testing.T) {
				t.Parallel()

				kl := tc.newLock()

				counters := map[string]*int{
					"x": new(int),
					"y": new(int),
					"z": new(int),
				}

				const n = 50

				var wg sync.WaitGroup

				for key, ctr := range counters {
					wg.Add(n)

					for range n {
						go func() {
							defer wg.Done()

							kl.Lock(key)
							defer kl.Unlock(key)

							*ctr++
						}()
					}
				}

				wg.Wait()

				for key, ctr := range counters {
					assert.Equal(t, n, *ctr, "counter for key %q", key)
				}
			})
		})
	}
}

func TestKeyLock_ImplementsKeyLocker(t *testing.T) {
	t.Parallel()

	var (
		_ syncs.KeyLocker = (*syncs.KeyLock)(nil)
		_ syncs.KeyLocker = &syncs.KeyLock{}
		_ syncs.KeyLocker = syncs.NewKeyRWLock(false)
	)
}
