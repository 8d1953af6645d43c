// Package queue provides the unbounded FIFO between the dispatcher and
// the consumer channel. Pushes never block; depth is observable so a
// stalled consumer shows up in logs and metrics instead of backpressure
// on the read loop.
package queue

import (
	"sync"

	"github.com/fenwick/fustream/internal/observability"
)

// Queue is a close-aware growable ring buffer. The buffer doubles when
// it reaches 70% occupancy, so Push stays amortized O(1).
type Queue[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []T
	head     int
	tail     int
	count    int
	capacity int
	closed   bool

	softCap  int
	warned   bool
	pushed   int64
	popped   int64
	resizes  int
	maxDepth int
}

// New creates a queue. softCap is the depth above which a stalled
// consumer warning is logged once per excursion; 0 disables the warning.
func New[T any](initialCapacity, softCap int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	q := &Queue[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
		softCap:  softCap,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item. Returns false if the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.grow()
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.pushed++
	if q.count > q.maxDepth {
		q.maxDepth = q.count
	}

	if q.softCap > 0 {
		if q.count > q.softCap && !q.warned {
			q.warned = true
			observability.Log().Warn("event queue above soft cap, consumer stalled?",
				observability.Int("depth", q.count),
				observability.Int("soft_cap", q.softCap))
		} else if q.warned && q.count <= q.softCap/2 {
			q.warned = false
		}
	}

	q.cond.Signal()
	return true
}

// Pop removes the oldest item, blocking until one is available or the
// queue is closed and drained.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

// TryPop removes the oldest item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

func (q *Queue[T]) popLocked() T {
	item := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % q.capacity
	q.count--
	q.popped++
	return item
}

// Close stops accepting pushes. Consumers drain the remainder, then Pop
// reports closed. Idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the current depth.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats describes queue activity since creation.
type Stats struct {
	Depth    int
	Capacity int
	MaxDepth int
	Pushed   int64
	Popped   int64
	Resizes  int
}

// Stats returns a snapshot of queue counters.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Depth:    q.count,
		Capacity: q.capacity,
		MaxDepth: q.maxDepth,
		Pushed:   q.pushed,
		Popped:   q.popped,
		Resizes:  q.resizes,
	}
}

func (q *Queue[T]) grow() {
	newCapacity := q.capacity * 2
	newBuf := make([]T, newCapacity)
	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}
	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.capacity = newCapacity
	q.resizes++
}
