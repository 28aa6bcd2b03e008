// Package lfq implements a lock-free multi-producer multi-consumer FIFO.
//
// The queue follows Michael and Scott: a singly linked list with a dummy
// head node, where Enqueue swings tail.next then tail, and Dequeue swings
// head. Both operations retry until their CAS succeeds, helping a lagging
// tail forward when they observe one.
//
// # Reclamation
//
// Dequeued nodes are never freed explicitly. They become garbage once no
// goroutine holds a pointer to them, and the Go collector reclaims them only
// then. A node address therefore cannot be recycled while a competing
// goroutine still holds it for a CAS, which rules out the ABA problem that
// tagged (pointer, counter) pairs guard against in manual-memory queues.
package lfq

import "sync/atomic"

type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// Queue is an unbounded lock-free FIFO. The zero value is not usable; use New.
type Queue[T any] struct {
	head atomic.Pointer[node[T]]
	tail atomic.Pointer[node[T]]
	size atomic.Int64
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	dummy := &node[T]{}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

// Enqueue appends v to the back of the queue.
func (q *Queue[T]) Enqueue(v T) {
	n := &node[T]{value: v}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next != nil {
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			q.size.Add(1)
			return
		}
	}
}

// Dequeue removes the front value. ok is false if the queue was empty.
func (q *Queue[T]) Dequeue() (v T, ok bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if next == nil {
			return v, false
		}
		if head == tail {
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		// Read before the CAS: once head moves, next becomes the dummy and
		// another consumer may already be past it.
		v = next.value
		if q.head.CompareAndSwap(head, next) {
			q.size.Add(-1)
			return v, true
		}
	}
}

// Empty reports whether the queue had no values at the moment of the check.
func (q *Queue[T]) Empty() bool {
	return q.head.Load().next.Load() == nil
}

// Len returns an approximate number of queued values.
// It is exact when no operation is in flight.
func (q *Queue[T]) Len() int {
	return int(max(q.size.Load(), 0))
}
