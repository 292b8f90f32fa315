package qsync

import "github.com/MacroPower/qsync/pkg/park"

// The methods in this file observe the sync queue without locking it. Their
// results are snapshots that may be stale by the time they are used, which
// makes them suitable for monitoring and for fairness heuristics, not for
// synchronization control.

// HasQueuedThreads reports whether any goroutine may be waiting to acquire.
func (s *Synchronizer) HasQueuedThreads() bool {
	return s.head.Load() != s.tail.Load()
}

// HasContended reports whether any goroutine has ever had to queue.
func (s *Synchronizer) HasContended() bool {
	return s.head.Load() != nil
}

// FirstQueuedThread returns the longest-waiting goroutine, or
// [park.NoThread] if none is queued.
func (s *Synchronizer) FirstQueuedThread() park.Thread {
	if s.head.Load() == s.tail.Load() {
		return park.NoThread
	}

	// Usually the head's successor. Check it twice in case the head moved
	// while it was being read.
	for range 2 {
		if h := s.head.Load(); h != nil {
			if n := h.next.Load(); n != nil && n.prev.Load() == s.head.Load() {
				if t := n.owner(); t != park.NoThread {
					return t
				}
			}
		}
	}

	// next is stale or the node was just satisfied: walk back from tail.
	first := park.NoThread
	for t := s.tail.Load(); t != nil && t != s.head.Load(); t = t.prev.Load() {
		if owner := t.owner(); owner != park.NoThread {
			first = owner
		}
	}

	return first
}

// IsQueued reports whether t is currently queued. It is always false for
// [park.NoThread].
func (s *Synchronizer) IsQueued(t park.Thread) bool {
	if t == park.NoThread {
		return false
	}

	for n := s.tail.Load(); n != nil; n = n.prev.Load() {
		if n.owner() == t {
			return true
		}
	}

	return false
}

// QueueLength returns an estimate of the number of queued goroutines.
func (s *Synchronizer) QueueLength() int {
	n := 0
	for p := s.tail.Load(); p != nil; p = p.prev.Load() {
		if p.owner() != park.NoThread {
			n++
		}
	}

	return n
}

// QueuedThreads returns the queued goroutines, most recently queued first.
func (s *Synchronizer) QueuedThreads() []park.Thread {
	return s.queued(func(*node) bool { return true })
}

// ExclusiveQueuedThreads returns the goroutines queued in exclusive mode.
func (s *Synchronizer) ExclusiveQueuedThreads() []park.Thread {
	return s.queued(func(n *node) bool { return !n.shared })
}

// SharedQueuedThreads returns the goroutines queued in shared mode.
func (s *Synchronizer) SharedQueuedThreads() []park.Thread {
	return s.queued(func(n *node) bool { return n.shared })
}

func (s *Synchronizer) queued(match func(*node) bool) []park.Thread {
	var threads []park.Thread
	for p := s.tail.Load(); p != nil; p = p.prev.Load() {
		if !match(p) {
			continue
		}

		if t := p.owner(); t != park.NoThread {
			threads = append(threads, t)
		}
	}

	return threads
}

// HasQueuedPredecessors reports whether some other goroutine has been queued
// longer than the caller. Fair policies refuse to acquire while it returns
// true.
func (s *Synchronizer) HasQueuedPredecessors() bool {
	// Read tail before head: head is only published after tail on the first
	// enqueue, so head.next is valid whenever head != tail.
	t := s.tail.Load()
	h := s.head.Load()
	if h == t {
		return false
	}

	n := h.next.Load()

	return n == nil || n.owner() != park.Current()
}

// ApparentlyFirstQueuedIsExclusive reports whether the apparent first queued
// goroutine is waiting in exclusive mode. Non-fair read/write policies use it
// to keep readers from starving a waiting writer.
func (s *Synchronizer) ApparentlyFirstQueuedIsExclusive() bool {
	h := s.head.Load()
	if h == nil {
		return false
	}

	n := h.next.Load()

	return n != nil && !n.shared && n.owner() != park.NoThread
}

// Owns reports whether c was created by s.
func (s *Synchronizer) Owns(c *ConditionObject) bool {
	return c.sync == s
}
