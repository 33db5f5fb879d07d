// Package sampler runs a cancellable periodic task while an operation is
// active.
package sampler

import (
	"sync"
	"time"
)

// Sampler calls a tick func every period on its own goroutine. At most one
// loop runs at a time; ticks that fire after Stop are dropped.
type Sampler struct {
	period time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

func New(period time.Duration) *Sampler {
	return &Sampler{period: period}
}

func (s *Sampler) Period() time.Duration { return s.period }

// Start launches the loop. It returns false without doing anything if a loop
// is already running.
func (s *Sampler) Start(tick func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return false
	}
	stop := make(chan struct{})
	s.stop = stop

	go func() {
		ticker := time.NewTicker(s.period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				tick()
			}
		}
	}()
	return true
}

// Stop cancels the loop. An in-flight tick finishes; no further tick starts.
// Stop does not wait, so it is safe to call from inside a tick.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
}

func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}
