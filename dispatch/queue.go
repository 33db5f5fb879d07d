// Package dispatch provides the serial delivery context every published
// state write runs on. A Queue stands in for a UI main thread: tasks run
// one at a time, in submission order, on a single goroutine.
package dispatch

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("dispatch: queue closed")

// Executor runs fn asynchronously on some execution context.
type Executor interface {
	Async(fn func())
}

type Queue struct {
	name string

	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{}
	closed  bool
	stopped chan struct{}
}

func NewQueue(name string) *Queue {
	q := &Queue{
		name:    name,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) Name() string { return q.name }

// Async enqueues fn. It never blocks; tasks submitted after Close are dropped.
func (q *Queue) Async(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Sync enqueues fn and waits for it to finish. It must not be called from a
// task running on the same queue.
func (q *Queue) Sync(fn func()) error {
	done := make(chan struct{})
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.tasks = append(q.tasks, func() {
		defer close(done)
		fn()
	})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	select {
	case <-done:
		return nil
	case <-q.stopped:
		return ErrClosed
	}
}

// Flush waits until every task submitted before the call has run.
func (q *Queue) Flush() {
	q.Sync(func() {})
}

// Close drains pending tasks and stops the queue goroutine.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.stopped
}

func (q *Queue) run() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		batch := q.tasks
		q.tasks = nil
		closed := q.closed
		q.mu.Unlock()

		for _, fn := range batch {
			fn()
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}

// Inline runs tasks on the caller's goroutine. It is only useful for
// collaborators that have no UI context to hop to.
type Inline struct{}

func (Inline) Async(fn func()) { fn() }
