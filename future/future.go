// Package future bridges one-shot blocking operations into single-value
// producers with a typed failure channel.
//
// A Future runs its operation at most once, on the first Await or Subscribe.
// Every observer after that sees the stored result; nothing is replayed or
// retried.
package future

import (
	"context"
	"fmt"
	"sync"

	"obsaudio/dispatch"
	"obsaudio/fail"
)

type Future[T any] struct {
	kind fail.Kind
	op   func(context.Context) (T, error)

	start sync.Once
	ctx   context.Context
	stop  context.CancelFunc

	mu        sync.Mutex
	subs      []*subscription[T]
	completed bool
	done      chan struct{}
	val       T
	err       *fail.Error
}

type subscription[T any] struct {
	exec      dispatch.Executor
	onValue   func(T)
	onFail    func(error)
	cancelled bool
}

// New returns a Future that will run op and map any error it returns to kind.
func New[T any](kind fail.Kind, op func(context.Context) (T, error)) *Future[T] {
	ctx, stop := context.WithCancel(context.Background())
	return &Future[T]{
		kind: kind,
		op:   op,
		ctx:  ctx,
		stop: stop,
		done: make(chan struct{}),
	}
}

// Just returns an already-resolved Future.
func Just[T any](v T) *Future[T] {
	f := New[T](fail.Create, nil)
	f.start.Do(func() {})
	f.val = v
	f.completed = true
	close(f.done)
	return f
}

// Failed returns an already-failed Future.
func Failed[T any](err error) *Future[T] {
	fe := fail.Wrap(fail.Create, err)
	f := New[T](fe.Kind, nil)
	f.start.Do(func() {})
	f.err = fe
	f.completed = true
	close(f.done)
	return f
}

func (f *Future[T]) run() {
	var (
		v   T
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		v, err = f.op(f.ctx)
	}()

	f.mu.Lock()
	if err != nil {
		f.err = fail.Wrap(f.kind, err)
	} else {
		f.val = v
	}
	f.completed = true
	subs := f.subs
	f.subs = nil
	f.mu.Unlock()

	// Deliveries are handed to their executors before done closes, so an
	// Await that returns implies every subscriber's task is already queued.
	for _, s := range subs {
		f.deliver(s)
	}
	close(f.done)
	f.stop()
}

func (f *Future[T]) ensureStarted() {
	f.start.Do(func() { go f.run() })
}

func (f *Future[T]) deliver(s *subscription[T]) {
	val, err := f.val, f.err
	s.exec.Async(func() {
		f.mu.Lock()
		cancelled := s.cancelled
		f.mu.Unlock()
		if cancelled {
			return
		}
		if err != nil {
			if s.onFail != nil {
				s.onFail(err)
			}
			return
		}
		if s.onValue != nil {
			s.onValue(val)
		}
	})
}

// Subscribe starts the operation if needed and delivers its outcome on exec.
// Calling the returned cancel func before delivery suppresses it; the
// underlying operation is not interrupted.
func (f *Future[T]) Subscribe(exec dispatch.Executor, onValue func(T), onFail func(error)) (cancel func()) {
	s := &subscription[T]{exec: exec, onValue: onValue, onFail: onFail}
	cancel = func() {
		f.mu.Lock()
		s.cancelled = true
		f.mu.Unlock()
	}

	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		f.deliver(s)
		return cancel
	}
	f.subs = append(f.subs, s)
	f.mu.Unlock()

	f.ensureStarted()
	return cancel
}

// Await starts the operation if needed and blocks until it completes or ctx
// is done. A done ctx abandons the wait only.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	f.ensureStarted()
	select {
	case <-f.done:
		if f.err != nil {
			var zero T
			return zero, f.err
		}
		return f.val, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the operation has completed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
