// Package event carries platform notifications (route changes,
// interruptions, completions) from a single producer to any number of
// consumers.
package event

import "sync"

const defaultBuffer = 16

// Stream fans out published events to subscribers. Each subscriber has its
// own buffered channel; when a subscriber's buffer is full the event is
// dropped for that subscriber only.
type Stream[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	next   int
	buffer int
	closed bool
}

func NewStream[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[int]chan T), buffer: defaultBuffer}
}

// Publish delivers ev to every current subscriber without blocking. It
// reports how many subscribers accepted the event.
func (s *Stream[T]) Publish(ev T) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	n := 0
	for _, ch := range s.subs {
		select {
		case ch <- ev:
			n++
		default:
		}
	}
	return n
}

// Subscribe registers a consumer. The cancel func removes it and closes its
// channel; it is safe to call more than once.
func (s *Stream[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, s.buffer)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Stream[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
