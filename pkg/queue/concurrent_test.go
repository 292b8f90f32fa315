package queue_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacroPower/qsync/pkg/queue"
)

func TestConcurrentQueueFIFO(t *testing.T) {
	t.Parallel()

	q := queue.NewConcurrentQueue[string]()
	assert.True(t, q.IsEmpty())

	_, ok := q.Poll()
	assert.False(t, ok)

	q.Offer("a")
	q.Offer("b")
	q.Offer("c")
	assert.Equal(t, 3, q.Len())

	v, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	for _, want := range []string{"a", "b", "c"} {
		v, ok := q.Poll()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}

	assert.True(t, q.IsEmpty())

	_, ok = q.Peek()
	assert.False(t, ok)
}

func TestConcurrentQueueConcurrentUse(t *testing.T) {
	t.Parallel()

	const (
		producers = 4
		perWorker = 1000
	)

	q := queue.NewConcurrentQueue[int]()

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := range perWorker {
				q.Offer(p*perWorker + i)
			}
		}()
	}

	var (
		mu   sync.Mutex
		seen = make(map[int]bool)
		cwg  sync.WaitGroup
	)

	for range producers {
		cwg.Add(1)
		go func() {
			defer cwg.Done()

			last := map[int]int{}
			for got := 0; got < perWorker; {
				v, ok := q.Poll()
				if !ok {
					continue
				}

				got++

				// Values from one producer come out in the order it added them.
				p := v / perWorker
				if prev, ok := last[p]; ok {
					assert.Greater(t, v, prev)
				}

				last[p] = v

				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	cwg.Wait()

	assert.Len(t, seen, producers*perWorker)
	assert.True(t, q.IsEmpty())
}
