// File: waitqueue/waitqueue.go
// Package waitqueue provides the blocking FIFO that hands received
// records from the network goroutine to consumer goroutines.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package waitqueue

import (
	"sync"

	"github.com/eapache/queue"
)

// Queue is a mutex-and-condition guarded FIFO with edge-triggered size
// waits. All internal state is touched only under mu; the condition
// variable is the single blocking point.
//
// The zero value is not usable; call New.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *queue.Queue
	pushed bool
}

// New builds an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{items: queue.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends v and wakes exactly one size waiter.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items.Add(v)
	q.pushed = true
	q.mu.Unlock()
	q.cond.Signal()
}

// FrontAndPop removes and returns the head in one guarded step, so two
// concurrent consumers can never take the same element or drop one
// between a front and a pop. ok is false on an empty queue.
func (q *Queue[T]) FrontAndPop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Length() == 0 {
		var zero T
		return zero, false
	}
	return q.items.Remove().(T), true
}

// WaitForSize blocks until the queue holds at least n items and returns
// the size observed when the wait was satisfied. While short of n the
// wait advances only on push edges: each wakeup consumes the
// pending-push flag and wakeups without a pending push go back to
// sleep. A queue already holding n items returns immediately without
// consuming an edge.
func (q *Queue[T]) WaitForSize(n int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Length() < n {
		for !q.pushed {
			q.cond.Wait()
		}
		q.pushed = false
	}
	return q.items.Length()
}

// Empty reports whether the queue holds no items.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length() == 0
}

// Size reports the current item count.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}
