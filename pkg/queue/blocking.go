package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/MacroPower/qsync/pkg/locks"
	"github.com/MacroPower/qsync/pkg/qsync"
	"github.com/MacroPower/qsync/pkg/syncerrors"
)

// BlockingQueue is a bounded FIFO queue backed by a ring buffer. Create
// instances with [NewBlockingQueue].
//
// Once closed, adding fails with [syncerrors.ErrClosed], and taking fails
// with [syncerrors.ErrClosed] after the remaining elements have drained.
type BlockingQueue[T any] struct {
	lock     *locks.ReentrantLock
	notEmpty *qsync.ConditionObject
	notFull  *qsync.ConditionObject

	items  []T
	head   int
	count  int
	closed bool
}

// NewBlockingQueue creates a [BlockingQueue] holding at most capacity
// elements. If fair is set, blocked producers and consumers are served in
// arrival order. It panics if capacity is not positive.
func NewBlockingQueue[T any](capacity int, fair bool) *BlockingQueue[T] {
	if capacity <= 0 {
		panic("queue: capacity must be positive")
	}

	l := locks.NewReentrantLock(fair)

	return &BlockingQueue[T]{
		lock:     l,
		notEmpty: l.NewCondition(),
		notFull:  l.NewCondition(),
		items:    make([]T, capacity),
	}
}

func (q *BlockingQueue[T]) enqueue(v T) {
	q.items[(q.head+q.count)%len(q.items)] = v
	q.count++
	q.notEmpty.Signal()
}

func (q *BlockingQueue[T]) dequeue() T {
	var zero T

	v := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.count--
	q.notFull.Signal()

	return v
}

// Put adds v, waiting for space if the queue is full.
func (q *BlockingQueue[T]) Put(ctx context.Context, v T) error {
	if err := q.lock.LockContext(ctx); err != nil {
		return err
	}
	defer q.lock.Unlock()

	for q.count == len(q.items) && !q.closed {
		if err := q.notFull.Await(ctx); err != nil {
			return err
		}
	}

	if q.closed {
		return syncerrors.ErrClosed
	}

	q.enqueue(v)

	return nil
}

// Offer adds v if there is space, reporting whether it was added. It never
// adds to a closed queue.
func (q *BlockingQueue[T]) Offer(v T) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed || q.count == len(q.items) {
		return false
	}

	q.enqueue(v)

	return true
}

// OfferTimeout adds v, waiting up to timeout for space. It reports false if
// the timeout elapsed first.
func (q *BlockingQueue[T]) OfferTimeout(ctx context.Context, v T, timeout time.Duration) (bool, error) {
	if err := q.lock.LockContext(ctx); err != nil {
		return false, err
	}
	defer q.lock.Unlock()

	remaining := timeout
	for q.count == len(q.items) && !q.closed {
		if remaining <= 0 {
			return false, nil
		}

		var err error

		remaining, err = q.notFull.AwaitNanos(ctx, remaining)
		if err != nil {
			return false, err
		}
	}

	if q.closed {
		return false, syncerrors.ErrClosed
	}

	q.enqueue(v)

	return true, nil
}

// Take removes and returns the head, waiting for an element if the queue is
// empty.
func (q *BlockingQueue[T]) Take(ctx context.Context) (T, error) {
	var zero T

	if err := q.lock.LockContext(ctx); err != nil {
		return zero, err
	}
	defer q.lock.Unlock()

	for q.count == 0 {
		if q.closed {
			return zero, syncerrors.ErrClosed
		}

		if err := q.notEmpty.Await(ctx); err != nil {
			return zero, err
		}
	}

	return q.dequeue(), nil
}

// Poll removes and returns the head if there is one.
func (q *BlockingQueue[T]) Poll() (T, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.count == 0 {
		var zero T

		return zero, false
	}

	return q.dequeue(), true
}

// PollTimeout removes and returns the head, waiting up to timeout for an
// element. It reports false if the timeout elapsed first.
func (q *BlockingQueue[T]) PollTimeout(ctx context.Context, timeout time.Duration) (T, bool, error) {
	var zero T

	if err := q.lock.LockContext(ctx); err != nil {
		return zero, false, err
	}
	defer q.lock.Unlock()

	remaining := timeout
	for q.count == 0 {
		if q.closed {
			return zero, false, syncerrors.ErrClosed
		}

		if remaining <= 0 {
			return zero, false, nil
		}

		var err error

		remaining, err = q.notEmpty.AwaitNanos(ctx, remaining)
		if err != nil {
			return zero, false, err
		}
	}

	return q.dequeue(), true, nil
}

// DrainTo removes up to limit elements, or every element if limit is
// negative, and appends them to dst in FIFO order.
func (q *BlockingQueue[T]) DrainTo(dst []T, limit int) []T {
	q.lock.Lock()
	defer q.lock.Unlock()

	n := q.count
	if limit >= 0 {
		n = min(n, limit)
	}

	for range n {
		dst = append(dst, q.dequeue())
	}

	return dst
}

// Len returns the number of elements.
func (q *BlockingQueue[T]) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.count
}

// RemainingCapacity returns how many more elements fit without blocking.
func (q *BlockingQueue[T]) RemainingCapacity() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return len(q.items) - q.count
}

// Close stops the queue from accepting elements and wakes every blocked
// goroutine. Elements already queued can still be taken.
func (q *BlockingQueue[T]) Close() {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.closed = true
	q.notEmpty.SignalAll()
	q.notFull.SignalAll()
}

// IsClosed reports whether [BlockingQueue.Close] has been called.
func (q *BlockingQueue[T]) IsClosed() bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.closed
}

func (q *BlockingQueue[T]) String() string {
	q.lock.Lock()
	defer q.lock.Unlock()

	return fmt.Sprintf("queue.BlockingQueue{len = %d, cap = %d, closed = %t}", q.count, len(q.items), q.closed)
}
