// Package native implements the session, recorder and player platform
// contracts on top of an audio.Context.
package native

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"obsaudio/audio"
	"obsaudio/event"
	"obsaudio/log"
	"obsaudio/session"
)

const DefaultPollInterval = 3 * time.Second

var (
	ErrUnknownPort = errors.New("unknown port")
	ErrNoRoute     = errors.New("no suitable route")
)

var allCategories = []session.Name{
	session.Ambient, session.SoloAmbient, session.Playback,
	session.Record, session.PlayAndRecord, session.MultiRoute,
}

var allModes = []session.Mode{
	session.ModeDefault, session.ModeGameChat, session.ModeMeasurement,
	session.ModeMoviePlayback, session.ModeSpokenAudio, session.ModeVideoChat,
	session.ModeVideoRecording, session.ModeVoiceChat, session.ModeVoicePrompt,
}

// Session is a session.Platform whose route is the set of devices an
// audio.Context reports. Devices are polled for hot-plug.
type Session struct {
	ctx audio.Context

	mu        sync.Mutex
	category  session.Name
	mode      session.Mode
	options   session.Options
	active    bool
	inputs    []session.Port
	outputs   []session.Port
	preferred string
	muted     bool

	routes     *event.Stream[session.RouteChange]
	interrupts *event.Stream[session.Interruption]
	stop       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

// NewSession snapshots the current devices and polls them every interval
// (DefaultPollInterval when zero).
func NewSession(ctx audio.Context, interval time.Duration) (*Session, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	inputs, outputs, err := listPorts(ctx)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ctx:        ctx,
		category:   session.SoloAmbient,
		mode:       session.ModeDefault,
		inputs:     inputs,
		outputs:    outputs,
		routes:     event.NewStream[session.RouteChange](),
		interrupts: event.NewStream[session.Interruption](),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go s.poll(interval)
	return s, nil
}

func listPorts(ctx audio.Context) (inputs, outputs []session.Port, err error) {
	caps, err := ctx.Devices(audio.Capture)
	if err != nil {
		return nil, nil, fmt.Errorf("listing capture devices: %w", err)
	}
	plays, err := ctx.Devices(audio.Playback)
	if err != nil {
		return nil, nil, fmt.Errorf("listing playback devices: %w", err)
	}
	for _, d := range caps {
		inputs = append(inputs, toPort(d, "Microphone"))
	}
	for _, d := range plays {
		outputs = append(outputs, toPort(d, "Speaker"))
	}
	return inputs, outputs, nil
}

func toPort(d audio.DeviceInfo, fallback string) session.Port {
	typ := fallback
	if audio.IsBluetooth(d.Name) {
		typ = "Bluetooth"
	}
	return session.Port{ID: d.ID, Name: d.Name, Type: typ}
}

func portIDs(ports []session.Port) []string {
	ids := make([]string, len(ports))
	for i, p := range ports {
		ids[i] = p.ID
	}
	return ids
}

func (s *Session) poll(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

// refresh re-reads the device lists and publishes what changed.
func (s *Session) refresh() {
	inputs, outputs, err := listPorts(s.ctx)
	if err != nil {
		log.Warnf("[native] %v", err)
		return
	}

	s.mu.Lock()
	oldIDs := append(portIDs(s.inputs), portIDs(s.outputs)...)
	newIDs := append(portIDs(inputs), portIDs(outputs)...)
	s.inputs, s.outputs = inputs, outputs

	var reason session.Reason
	changed := true
	switch {
	case slices.Equal(oldIDs, newIDs):
		changed = false
	case containsAll(newIDs, oldIDs):
		reason = session.ReasonNewDeviceAvailable
	default:
		reason = session.ReasonOldDeviceUnavailable
	}
	if s.preferred != "" && !slices.Contains(portIDs(inputs), s.preferred) {
		log.Info("device_disconnected: " + s.preferred)
		s.preferred = ""
	}
	if changed && s.active && !s.routableLocked(s.category) {
		reason = session.ReasonNoSuitableRouteForCategory
	}

	var interruption *session.Interruption
	if s.active {
		silent := s.category.NeedsOutput() && len(outputs) == 0
		switch {
		case silent && !s.muted:
			interruption = &session.Interruption{Type: session.InterruptionBegan}
		case !silent && s.muted:
			interruption = &session.Interruption{Type: session.InterruptionEnded, ShouldResume: true}
		}
		s.muted = silent
	}
	s.mu.Unlock()

	if changed {
		s.routes.Publish(session.RouteChange{Reason: reason})
	}
	if interruption != nil {
		s.interrupts.Publish(*interruption)
	}
}

func containsAll(set, sub []string) bool {
	for _, id := range sub {
		if !slices.Contains(set, id) {
			return false
		}
	}
	return true
}

// routableLocked reports whether the current devices can serve name.
func (s *Session) routableLocked(name session.Name) bool {
	if name.NeedsInput() && len(s.inputs) == 0 {
		return false
	}
	if name.NeedsOutput() && len(s.outputs) == 0 {
		return false
	}
	if name == session.MultiRoute && len(s.outputs) < 2 {
		return false
	}
	return true
}

func (s *Session) AvailableCategories() []session.Name {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []session.Name
	for _, n := range allCategories {
		if s.routableLocked(n) {
			names = append(names, n)
		}
	}
	return names
}

func (s *Session) AvailableModes() []session.Mode {
	return slices.Clone(allModes)
}

func (s *Session) Category() session.Name {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.category
}

func (s *Session) SetCategory(name session.Name, mode session.Mode, opts session.Options) error {
	s.mu.Lock()
	if !slices.Contains(allCategories, name) {
		s.mu.Unlock()
		return fmt.Errorf("unknown category %q", name)
	}
	changed := s.active && name != s.category
	s.category, s.mode, s.options = name, mode, opts
	s.mu.Unlock()

	if changed {
		s.routes.Publish(session.RouteChange{Reason: session.ReasonCategoryChange})
	}
	return nil
}

// SetActive fails when activating a category the current devices cannot
// route.
func (s *Session) SetActive(active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if active && !s.routableLocked(s.category) {
		return fmt.Errorf("%w for %s", ErrNoRoute, s.category)
	}
	s.active = active
	s.muted = false
	return nil
}

func (s *Session) AvailableInputs() []session.Port {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.inputs)
}

// CurrentRoute holds the preferred (or first) input when the category records
// and the first output when it plays.
func (s *Session) CurrentRoute() session.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	var r session.Route
	if s.category.NeedsInput() && len(s.inputs) > 0 {
		in := s.inputs[0]
		for _, p := range s.inputs {
			if p.ID == s.preferred {
				in = p
			}
		}
		r.Inputs = []session.Port{in}
	}
	if s.category.NeedsOutput() && len(s.outputs) > 0 {
		r.Outputs = []session.Port{s.outputs[0]}
		if s.category == session.MultiRoute {
			r.Outputs = slices.Clone(s.outputs)
		}
	}
	return r
}

func (s *Session) SetPreferredInput(port session.Port) error {
	s.mu.Lock()
	if !slices.Contains(portIDs(s.inputs), port.ID) {
		s.mu.Unlock()
		return fmt.Errorf("%w %q", ErrUnknownPort, port.ID)
	}
	changed := s.preferred != port.ID
	s.preferred = port.ID
	s.mu.Unlock()

	if changed {
		s.routes.Publish(session.RouteChange{Reason: session.ReasonOverride})
	}
	return nil
}

func (s *Session) RouteChanges() *event.Stream[session.RouteChange] { return s.routes }

func (s *Session) Interruptions() *event.Stream[session.Interruption] { return s.interrupts }

// InputDevice is the device recordings should capture from; nil means the
// system default.
func (s *Session) InputDevice() *audio.DeviceInfo {
	r := s.CurrentRoute()
	if len(r.Inputs) == 0 {
		return nil
	}
	return &audio.DeviceInfo{ID: r.Inputs[0].ID, Name: r.Inputs[0].Name}
}

// OutputDevice is the device playback should use; nil means the system
// default.
func (s *Session) OutputDevice() *audio.DeviceInfo {
	r := s.CurrentRoute()
	if len(r.Outputs) == 0 {
		return nil
	}
	return &audio.DeviceInfo{ID: r.Outputs[0].ID, Name: r.Outputs[0].Name}
}

// Close stops polling and closes both event streams.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.routes.Close()
		s.interrupts.Close()
	})
}
