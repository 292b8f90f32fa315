// Package queue provides concurrent FIFO queues.
//
// [ConcurrentQueue] is an unbounded non-blocking queue. [BlockingQueue] is a
// bounded queue whose producers wait for space and whose consumers wait for
// elements, guarded by a [locks.ReentrantLock] and two conditions.
package queue
