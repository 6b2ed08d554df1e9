package controller

import (
	"sync"
	"sync/atomic"
)

// taskQueue is a FIFO of loop tasks whose push never blocks. Snippet workers
// post completions while the loop may be waiting on those same workers, so a
// bounded buffer could deadlock.
type taskQueue struct {
	mu     sync.Mutex
	items  []func()
	notify chan struct{}
	closed bool

	pushed atomic.Int64
	popped atomic.Int64
}

func newTaskQueue() *taskQueue {
	return &taskQueue{notify: make(chan struct{}, 1)}
}

// push appends fn. It fails only once the queue is closed.
func (q *taskQueue) push(fn func()) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrControllerClosed
	}
	q.items = append(q.items, fn)
	q.mu.Unlock()

	q.pushed.Add(1)
	q.wake()
	return nil
}

// pop blocks until a task is available. It returns false once the queue is
// closed and drained.
func (q *taskQueue) pop() (func(), bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			fn := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			q.popped.Add(1)
			return fn, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()
		<-q.notify
	}
}

// close stops accepting tasks. Queued tasks are still handed out by pop.
func (q *taskQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *taskQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
