// Package observe holds published state and notifies subscribers when it
// changes.
package observe

import "sync"

// Value holds a state snapshot of type S. Update is meant to be called from a
// single delivery context; Load and Subscribe are safe from any goroutine.
//
// Subscribers receive the latest snapshot after each update. Slow
// subscribers miss intermediate snapshots rather than blocking the writer.
type Value[S any] struct {
	mu   sync.RWMutex
	cur  S
	subs map[int]chan S
	next int
}

func NewValue[S any](initial S) *Value[S] {
	return &Value[S]{cur: initial, subs: make(map[int]chan S)}
}

func (v *Value[S]) Load() S {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cur
}

// Update applies fn to a copy of the current snapshot and publishes the
// result.
func (v *Value[S]) Update(fn func(*S)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := v.cur
	fn(&next)
	v.cur = next
	for _, ch := range v.subs {
		offer(ch, next)
	}
}

// offer replaces any pending snapshot in ch with s.
func offer[S any](ch chan S, s S) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribe returns a channel carrying snapshots published after the call and
// a cancel func that closes it.
func (v *Value[S]) Subscribe() (<-chan S, func()) {
	ch := make(chan S, 1)
	v.mu.Lock()
	id := v.next
	v.next++
	v.subs[id] = ch
	v.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			v.mu.Unlock()
			close(ch)
		})
	}
}
