package queue

import "sync/atomic"

type linkNode[T any] struct {
	value T
	next  atomic.Pointer[linkNode[T]]
}

// ConcurrentQueue is an unbounded, lock-free FIFO queue. Create instances
// with [NewConcurrentQueue].
//
// The head is always a dummy node whose value has already been taken. The
// tail may lag one node behind the last node; every operation that notices
// this helps advance it.
type ConcurrentQueue[T any] struct {
	head atomic.Pointer[linkNode[T]]
	tail atomic.Pointer[linkNode[T]]
}

// NewConcurrentQueue creates an empty [ConcurrentQueue].
func NewConcurrentQueue[T any]() *ConcurrentQueue[T] {
	q := &ConcurrentQueue[T]{}
	dummy := &linkNode[T]{}
	q.head.Store(dummy)
	q.tail.Store(dummy)

	return q
}

// Offer appends v to the tail of the queue.
func (q *ConcurrentQueue[T]) Offer(v T) {
	n := &linkNode[T]{value: v}

	for {
		t := q.tail.Load()
		next := t.next.Load()

		if t != q.tail.Load() {
			continue
		}

		if next != nil {
			q.tail.CompareAndSwap(t, next)

			continue
		}

		if t.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(t, n)

			return
		}
	}
}

// Poll removes and returns the head of the queue. It reports false if the
// queue is empty.
func (q *ConcurrentQueue[T]) Poll() (T, bool) {
	for {
		h := q.head.Load()
		t := q.tail.Load()
		next := h.next.Load()

		if h != q.head.Load() {
			continue
		}

		if next == nil {
			var zero T

			return zero, false
		}

		if h == t {
			q.tail.CompareAndSwap(t, next)

			continue
		}

		v := next.value
		if q.head.CompareAndSwap(h, next) {
			return v, true
		}
	}
}

// Peek returns the head of the queue without removing it.
func (q *ConcurrentQueue[T]) Peek() (T, bool) {
	if next := q.head.Load().next.Load(); next != nil {
		return next.value, true
	}

	var zero T

	return zero, false
}

// IsEmpty reports whether the queue has no elements.
func (q *ConcurrentQueue[T]) IsEmpty() bool {
	return q.head.Load().next.Load() == nil
}

// Len counts the elements. It walks the queue, so the result is only an
// estimate under concurrent modification.
func (q *ConcurrentQueue[T]) Len() int {
	n := 0
	for p := q.head.Load().next.Load(); p != nil; p = p.next.Load() {
		n++
	}

	return n
}
