// Package session projects an audio session's configuration and route into
// observable state.
//
// All State writes happen on the Session's delivery executor, whether they
// come from a Configure completion or from a platform notification.
package session

import (
	"context"
	"sync"

	"obsaudio/dispatch"
	"obsaudio/future"
	"obsaudio/log"
	"obsaudio/observe"
)

type State struct {
	Ready   bool
	Inputs  []Port
	Outputs []Port
	// Active is the category applied by the last successful Configure.
	Active Category
	// RouteChanged describes the last route change; empty until one arrives.
	RouteChanged string
	// ErrorDescription holds the last configuration failure.
	ErrorDescription string
}

type Session struct {
	platform Platform
	exec     dispatch.Executor
	state    *observe.Value[State]

	stop      chan struct{}
	done      chan struct{}
	cancels   []func()
	closeOnce sync.Once
}

// New subscribes to p's route-change and interruption streams. The session
// starts unready; call Configure or ConfigureAsync to activate it.
func New(p Platform, exec dispatch.Executor) *Session {
	s := &Session{
		platform: p,
		exec:     exec,
		state:    observe.NewValue(State{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	routes, cancelRoutes := p.RouteChanges().Subscribe()
	interrupts, cancelInterrupts := p.Interruptions().Subscribe()
	s.cancels = []func(){cancelRoutes, cancelInterrupts}

	go s.listen(routes, interrupts)
	return s
}

func (s *Session) listen(routes <-chan RouteChange, interrupts <-chan Interruption) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case rc, ok := <-routes:
			if !ok {
				routes = nil
				continue
			}
			s.handleRouteChange(rc)
		case in, ok := <-interrupts:
			if !ok {
				interrupts = nil
				continue
			}
			log.Infof("[AudioSession] system interrupt: %s (resume=%t)", in.Type, in.ShouldResume)
		}
	}
}

func (s *Session) handleRouteChange(rc RouteChange) {
	inputs := s.platform.AvailableInputs()
	outputs := s.platform.CurrentRoute().Outputs
	desc := rc.Reason.String()
	log.RouteChange(int(rc.Reason), desc)

	s.exec.Async(func() {
		s.state.Update(func(st *State) {
			st.Inputs = inputs
			st.Outputs = outputs
			st.RouteChanged = desc
		})
	})
}

// Configure validates and applies c, then activates the session. It returns
// once the outcome has been projected into State. Failures leave every
// field except ErrorDescription untouched.
//
// Configure must not be called from a task running on the delivery executor.
func (s *Session) Configure(ctx context.Context, c Category) error {
	return s.apply(ctx, Setup(s.platform, c))
}

// ConfigureJSON decodes a JSON category and configures with it. Decode
// failures are reported as fail.Decode, distinct from activation failures.
func (s *Session) ConfigureJSON(ctx context.Context, data []byte) error {
	return s.apply(ctx, SetupJSON(s.platform, data))
}

// ConfigureFile reads a JSON category from path and configures with it.
func (s *Session) ConfigureFile(ctx context.Context, path string) error {
	return s.apply(ctx, SetupFile(s.platform, path))
}

// ConfigureAsync starts Configure in the background and logs its outcome.
func (s *Session) ConfigureAsync(c Category) {
	go func() {
		if err := s.Configure(context.Background(), c); err != nil {
			log.Warnf("[AudioSession] %v", err)
		}
	}()
}

func (s *Session) apply(ctx context.Context, f *future.Future[Category]) error {
	result := make(chan error, 1)
	cancel := f.Subscribe(s.exec,
		func(c Category) {
			s.didUpdate(c)
			result <- nil
		},
		func(err error) {
			log.Errorf("[AudioSession] %v", err)
			s.state.Update(func(st *State) { st.ErrorDescription = err.Error() })
			result <- err
		})

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

func (s *Session) didUpdate(c Category) {
	inputs := s.platform.AvailableInputs()
	outputs := s.platform.CurrentRoute().Outputs
	s.state.Update(func(st *State) {
		st.Inputs = inputs
		st.Outputs = outputs
		st.Active = c
		st.Ready = true
		st.ErrorDescription = ""
	})
	log.SessionReady(string(c.Category), string(c.Mode), len(inputs), len(outputs))
}

// SetPreferredInput asks the platform to route from port. It is a no-op
// before the session is ready; platform failures are only logged.
func (s *Session) SetPreferredInput(port Port) {
	if !s.state.Load().Ready {
		log.Warn("[AudioSession] the session is not ready yet.")
		return
	}
	if err := s.platform.SetPreferredInput(port); err != nil {
		log.Warnf("[AudioSession] set preferred input failed: %v", err)
	}
}

func (s *Session) State() State {
	return s.state.Load()
}

// Changes streams State snapshots published after the call.
func (s *Session) Changes() (<-chan State, func()) {
	return s.state.Subscribe()
}

// Close detaches from the platform's notification streams.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		for _, cancel := range s.cancels {
			cancel()
		}
	})
}
