// Package ingest buffers decoded stream messages between socket arrival and
// the periodic state commit.
package ingest

import "errors"

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded FIFO ring that doubles when full.
//
// Queue is not safe for concurrent use. It belongs to a single event loop
// that both pushes and drains, so it carries no lock.
type Queue[T any] struct {
	buf    []T
	head   int
	count  int
	closed bool

	totalPushed  int64
	totalDrained int64
}

// NewQueue creates a queue with the given starting capacity.
func NewQueue[T any](initialCapacity int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &Queue[T]{buf: make([]T, initialCapacity)}
}

// Push appends item. It never blocks; the ring grows as needed.
func (q *Queue[T]) Push(item T) error {
	if q.closed {
		return ErrClosed
	}
	if q.count == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.count)%len(q.buf)] = item
	q.count++
	q.totalPushed++
	return nil
}

// DrainTo removes and returns up to max of the oldest items in FIFO order.
// It returns nil when the queue is empty or max < 1.
func (q *Queue[T]) DrainTo(max int) []T {
	n := q.count
	if max < n {
		n = max
	}
	if n <= 0 {
		return nil
	}

	out := make([]T, n)
	var zero T
	for i := 0; i < n; i++ {
		out[i] = q.buf[q.head]
		q.buf[q.head] = zero // release for GC
		q.head = (q.head + 1) % len(q.buf)
	}
	q.count -= n
	q.totalDrained += int64(n)
	if q.count == 0 {
		q.head = 0
	}
	return out
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int { return q.count }

// Close rejects further pushes and discards anything still queued.
func (q *Queue[T]) Close() {
	q.closed = true
	var zero T
	for i := range q.buf {
		q.buf[i] = zero
	}
	q.count = 0
	q.head = 0
}

// Stats returns lifetime push and drain totals.
func (q *Queue[T]) Stats() (pushed, drained int64) {
	return q.totalPushed, q.totalDrained
}

func (q *Queue[T]) grow() {
	next := make([]T, len(q.buf)*2)
	for i := 0; i < q.count; i++ {
		next[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = next
	q.head = 0
}
