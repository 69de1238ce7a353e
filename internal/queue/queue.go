// Package queue holds a mutex-guarded FIFO that producers append to from
// any goroutine and a single consumer empties in batches.
package queue

import "sync"

// Queue collects values until the consumer takes them all with Drain.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	pushed uint64
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends values in order.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.pushed += uint64(len(items))
	q.mu.Unlock()
}

// Drain hands over everything queued so far. The returned slice is owned
// by the caller; later pushes start a fresh backing array.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Len is the number of values waiting.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pushed counts every value ever pushed, drained or not.
func (q *Queue[T]) Pushed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed
}
