package world

import "sync"

// Work is a deferred callback executed on the scheduler goroutine with the
// write lock held.
type Work func(w *World)

// fifo is an append-only queue guarded by its own mutex. Producers append from
// any goroutine; the scheduler takes the whole backlog at once.
type fifo[T any] struct {
	mu        sync.Mutex
	items     []T
	highWater int
}

// push appends v and returns the queue depth after the append.
func (q *fifo[T]) push(v T) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, v)
	n := len(q.items)
	if n > q.highWater {
		q.highWater = n
	}
	return n
}

// take removes and returns everything queued so far, in FIFO order.
func (q *fifo[T]) take() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

func (q *fifo[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *fifo[T]) peak() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.highWater
}

// WorkQueue holds the two deferred-work queues. Instant work is drained at the
// start of every unit of work; pre-tick work only while the world is idle.
type WorkQueue struct {
	instant fifo[Work]
	preTick fifo[Work]
}

// EnqueueInstant appends fn to the instant queue and returns its depth.
func (q *WorkQueue) EnqueueInstant(fn Work) int {
	return q.instant.push(fn)
}

// EnqueuePreTick appends fn to the pre-tick queue and returns its depth.
func (q *WorkQueue) EnqueuePreTick(fn Work) int {
	return q.preTick.push(fn)
}
