// Package player wraps a file-backed playback device and publishes its
// progress as observable state.
package player

import (
	"context"
	"sync"
	"time"

	"obsaudio/dispatch"
	"obsaudio/fail"
	"obsaudio/future"
	"obsaudio/log"
	"obsaudio/observe"
	"obsaudio/sampler"
)

type Device interface {
	URL() string
	Duration() time.Duration
	Play() bool
	Stop()
	IsPlaying() bool
	// SetLoops sets how many extra passes to play; negative loops forever.
	SetLoops(n int)
	CurrentTime() time.Duration
	SetCurrentTime(t time.Duration)
	SetDelegate(d Delegate)
}

// Delegate receives completion callbacks, possibly on the device's own
// goroutine.
type Delegate interface {
	DidFinishPlaying(d Device, ok bool)
	DecodeErrorDidOccur(d Device, err error)
}

type Factory interface {
	NewPlayer(path string) (Device, error)
}

type State struct {
	Ready       bool
	IsPlaying   bool
	CurrentTime time.Duration
}

const DefaultPollPeriod = 100 * time.Millisecond

type Player struct {
	factory Factory
	exec    dispatch.Executor
	state   *observe.Value[State]
	poll    *sampler.Sampler

	mu            sync.Mutex
	dev           Device
	gen           int
	cancelPrepare func()
}

// New returns an unprepared Player. A zero period polls every 100ms.
func New(f Factory, exec dispatch.Executor, period time.Duration) *Player {
	if period <= 0 {
		period = DefaultPollPeriod
	}
	return &Player{
		factory: f,
		exec:    exec,
		state:   observe.NewValue(State{}),
		poll:    sampler.New(period),
	}
}

// Prepare releases the current device, then loads path in the background.
// Ready turns true once the source is loaded; failures are logged.
func (p *Player) Prepare(path string) {
	p.Clean()

	p.mu.Lock()
	defer p.mu.Unlock()
	gen := p.gen
	f := future.New(fail.Create, func(context.Context) (Device, error) {
		return p.factory.NewPlayer(path)
	})
	p.cancelPrepare = f.Subscribe(p.exec,
		func(dev Device) {
			p.mu.Lock()
			if p.gen != gen {
				p.mu.Unlock()
				return
			}
			dev.SetDelegate(delegate{p})
			p.dev = dev
			p.cancelPrepare = nil
			p.mu.Unlock()
			p.state.Update(func(st *State) { st.Ready = true })
			log.Infof("[Player] prepared %s (%s)", dev.URL(), dev.Duration())
		},
		func(err error) {
			log.Errorf("[Player] %v", err)
		})
}

// Play starts playback, looping forever when loop is set. It does nothing
// when unprepared or already playing.
func (p *Player) Play(loop bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dev := p.dev
	if dev == nil || dev.IsPlaying() {
		return
	}
	if loop {
		dev.SetLoops(-1)
	} else {
		dev.SetLoops(0)
	}
	playing := dev.Play()
	p.exec.Async(func() {
		p.state.Update(func(st *State) { st.IsPlaying = playing })
	})
	if !playing {
		return
	}
	// A loop left by a finished pass may still be queued to stop.
	p.poll.Stop()
	p.poll.Start(func() {
		now := dev.CurrentTime()
		p.exec.Async(func() {
			p.state.Update(func(st *State) { st.CurrentTime = now })
		})
	})
}

// Stop halts playback and rewinds to the start. It does nothing when not
// playing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dev == nil || !p.dev.IsPlaying() {
		return
	}
	p.stopLocked()
}

func (p *Player) stopLocked() {
	p.dev.Stop()
	p.poll.Stop()
	p.dev.SetCurrentTime(0)
	p.exec.Async(func() {
		p.state.Update(func(st *State) {
			st.IsPlaying = false
			st.CurrentTime = 0
		})
	})
}

// Clean stops playback if needed and releases the device.
func (p *Player) Clean() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dev != nil && p.dev.IsPlaying() {
		p.stopLocked()
	}
	p.poll.Stop()
	p.gen++
	if p.cancelPrepare != nil {
		p.cancelPrepare()
		p.cancelPrepare = nil
	}
	p.dev = nil
	p.exec.Async(func() {
		p.state.Update(func(st *State) {
			st.Ready = false
			st.IsPlaying = false
		})
	})
}

func (p *Player) Close() {
	p.Clean()
}

// Duration of the loaded source, zero when unprepared.
func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dev == nil {
		return 0
	}
	return p.dev.Duration()
}

func (p *Player) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dev == nil {
		return ""
	}
	return p.dev.URL()
}

func (p *Player) State() State {
	return p.state.Load()
}

func (p *Player) Changes() (<-chan State, func()) {
	return p.state.Subscribe()
}

func (p *Player) isCurrent(dev Device) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dev == dev
}

type delegate struct{ p *Player }

func (d delegate) DidFinishPlaying(dev Device, ok bool) {
	log.PlaybackFinished(dev.URL(), ok)
	p := d.p
	p.exec.Async(func() {
		p.mu.Lock()
		finished := p.dev == dev && !dev.IsPlaying()
		if finished {
			p.poll.Stop()
		}
		p.mu.Unlock()
		if !finished {
			return
		}
		p.state.Update(func(st *State) { st.IsPlaying = false })
	})
}

func (d delegate) DecodeErrorDidOccur(dev Device, err error) {
	log.Errorf("[Player] decode error on %s: %v", dev.URL(), err)
}
