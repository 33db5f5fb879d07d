// Package recorder wraps a file-backed recording device and publishes its
// progress as observable state.
package recorder

import (
	"context"
	"os"
	"sync"
	"time"

	"obsaudio/dispatch"
	"obsaudio/fail"
	"obsaudio/future"
	"obsaudio/log"
	"obsaudio/observe"
	"obsaudio/sampler"
)

// Device is a platform recorder writing to a single file.
type Device interface {
	URL() string
	Settings() Settings
	Record() bool
	// RecordFor records and stops on its own once d has elapsed.
	RecordFor(d time.Duration) bool
	Pause()
	Stop()
	IsRecording() bool
	SetMeteringEnabled(enabled bool)
	UpdateMeters()
	// AveragePower and PeakPower report dBFS for channel, -160 being silence.
	AveragePower(channel int) float32
	PeakPower(channel int) float32
	SetDelegate(d Delegate)
}

// Delegate receives completion callbacks, possibly on the device's own
// goroutine.
type Delegate interface {
	DidFinishRecording(d Device, ok bool)
	EncodeErrorDidOccur(d Device, err error)
}

type Factory interface {
	NewRecorder(path string, s Settings) (Device, error)
}

// Metering is one sample of per-channel levels. Peak and Average both have
// Channels entries.
type Metering struct {
	Channels int
	Peak     []float32
	Average  []float32
}

func newMetering(channels int) *Metering {
	return &Metering{
		Channels: channels,
		Peak:     make([]float32, channels),
		Average:  make([]float32, channels),
	}
}

type State struct {
	Ready       bool
	IsRecording bool
	// RecordingResult is true once a recording finished successfully and its
	// file exists.
	RecordingResult bool
	Metering        *Metering
}

type Config struct {
	// MeteringPeriod defaults to one second.
	MeteringPeriod time.Duration
	// WatchdogGrace is added to a RecordFor duration before the recorder
	// re-reads the device's recording flag. Defaults to 500ms.
	WatchdogGrace time.Duration
}

type Recorder struct {
	factory Factory
	exec    dispatch.Executor
	state   *observe.Value[State]
	meter   *sampler.Sampler
	grace   time.Duration

	mu          sync.Mutex
	dev         Device
	paused      bool
	gen         int
	cancelReset func()
	watchdog    *time.Timer
}

func New(f Factory, exec dispatch.Executor, cfg Config) *Recorder {
	if cfg.MeteringPeriod <= 0 {
		cfg.MeteringPeriod = time.Second
	}
	if cfg.WatchdogGrace <= 0 {
		cfg.WatchdogGrace = 500 * time.Millisecond
	}
	return &Recorder{
		factory: f,
		exec:    exec,
		state:   observe.NewValue(State{}),
		meter:   sampler.New(cfg.MeteringPeriod),
		grace:   cfg.WatchdogGrace,
	}
}

// Reset stops any recording and creates a new device writing to the default
// path for s.
func (r *Recorder) Reset(s Settings) {
	r.ResetAt(DefaultPath(s), s)
}

// ResetAt stops any recording, drops the current device and asynchronously
// creates a new one writing to path. Ready turns true once it exists; a
// creation failure is logged and leaves the recorder unready.
func (r *Recorder) ResetAt(path string, s Settings) {
	r.Stop()

	r.mu.Lock()
	r.dropLocked()
	r.exec.Async(func() {
		r.state.Update(func(st *State) {
			st.Ready = false
			st.RecordingResult = false
		})
	})

	r.gen++
	gen := r.gen
	settings := s.Clone()
	f := future.New(fail.Create, func(context.Context) (Device, error) {
		return r.factory.NewRecorder(path, settings)
	})
	r.cancelReset = f.Subscribe(r.exec,
		func(dev Device) {
			r.mu.Lock()
			if r.gen != gen {
				r.mu.Unlock()
				return
			}
			dev.SetDelegate(delegate{r})
			dev.SetMeteringEnabled(true)
			r.dev = dev
			r.cancelReset = nil
			r.mu.Unlock()
			r.state.Update(func(st *State) { st.Ready = true })
			log.Infof("[Recorder] prepared %s", dev.URL())
		},
		func(err error) {
			log.Errorf("[Recorder] %v", err)
		})
	r.mu.Unlock()
}

// dropLocked forgets the current device and any pending creation. A paused
// take is stopped first so the device closes its file.
func (r *Recorder) dropLocked() {
	r.gen++
	if r.dev != nil && r.paused {
		r.dev.Stop()
	}
	r.paused = false
	if r.cancelReset != nil {
		r.cancelReset()
		r.cancelReset = nil
	}
	if r.watchdog != nil {
		r.watchdog.Stop()
		r.watchdog = nil
	}
	r.dev = nil
}

// Record starts recording and metering. It returns true without doing
// anything if a recording is already running, and false if there is no
// device or it refused to start.
func (r *Recorder) Record() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	dev := r.dev
	if dev == nil {
		return false
	}
	if dev.IsRecording() {
		return true
	}

	r.exec.Async(func() {
		r.state.Update(func(st *State) { st.RecordingResult = false })
	})
	if !dev.Record() {
		return false
	}
	r.paused = false
	r.startMetering(dev)
	recording := dev.IsRecording()
	r.exec.Async(func() {
		r.state.Update(func(st *State) { st.IsRecording = recording })
	})
	return true
}

func (r *Recorder) startMetering(dev Device) {
	channels := dev.Settings().Channels()
	r.meter.Start(func() {
		dev.UpdateMeters()
		m := newMetering(channels)
		for i := range channels {
			m.Average[i] = dev.AveragePower(i)
			m.Peak[i] = dev.PeakPower(i)
		}
		r.exec.Async(func() {
			r.state.Update(func(st *State) { st.Metering = m })
		})
	})
}

// RecordFor records for d and lets the device stop itself. After d plus the
// watchdog grace the recorder re-reads the device's recording flag, in case
// the device finished without calling its delegate.
func (r *Recorder) RecordFor(d time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	dev := r.dev
	if dev == nil || dev.IsRecording() {
		return false
	}
	if !dev.RecordFor(d) {
		return false
	}
	r.paused = false
	r.exec.Async(func() {
		r.state.Update(func(st *State) {
			st.IsRecording = true
			st.RecordingResult = false
		})
	})

	if r.watchdog != nil {
		r.watchdog.Stop()
	}
	r.watchdog = time.AfterFunc(d+r.grace, func() { r.refresh(dev) })
	return true
}

func (r *Recorder) refresh(dev Device) {
	r.exec.Async(func() {
		r.mu.Lock()
		current := r.dev == dev
		recording := current && dev.IsRecording()
		r.mu.Unlock()
		if !current || recording {
			return
		}
		r.state.Update(func(st *State) { st.IsRecording = false })
	})
}

// Stop ends the current recording. It does nothing when not recording.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dev == nil || !r.dev.IsRecording() {
		return
	}
	r.dev.Stop()
	r.meter.Stop()
	if r.watchdog != nil {
		r.watchdog.Stop()
		r.watchdog = nil
	}
	r.exec.Async(func() {
		r.state.Update(func(st *State) { st.IsRecording = false })
	})
}

// Pause suspends the current recording; Record resumes it.
func (r *Recorder) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dev == nil || !r.dev.IsRecording() {
		return
	}
	r.dev.Pause()
	r.meter.Stop()
	recording := r.dev.IsRecording()
	r.paused = !recording
	r.exec.Async(func() {
		r.state.Update(func(st *State) { st.IsRecording = recording })
	})
}

// Close stops any recording and releases the device.
func (r *Recorder) Close() {
	r.Stop()
	r.mu.Lock()
	r.dropLocked()
	r.mu.Unlock()
	r.meter.Stop()
}

// ResultURL is the path of the current device's file, empty without one.
func (r *Recorder) ResultURL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dev == nil {
		return ""
	}
	return r.dev.URL()
}

func (r *Recorder) State() State {
	return r.state.Load()
}

func (r *Recorder) Changes() (<-chan State, func()) {
	return r.state.Subscribe()
}

// isCurrent reports whether callbacks from dev still concern this recorder.
func (r *Recorder) isCurrent(dev Device) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dev == dev
}

type delegate struct{ r *Recorder }

func (d delegate) DidFinishRecording(dev Device, ok bool) {
	path := dev.URL()
	_, statErr := os.Stat(path)
	exists := statErr == nil
	log.RecordingFinished(path, ok, exists)

	r := d.r
	r.exec.Async(func() {
		r.mu.Lock()
		// A take restarted on dev before this ran owns the sampler now.
		current := r.dev == dev && !dev.IsRecording()
		if current {
			r.meter.Stop()
			r.paused = false
		}
		r.mu.Unlock()
		if !current {
			return
		}
		r.state.Update(func(st *State) {
			st.IsRecording = false
			st.RecordingResult = ok && exists
		})
	})
}

func (d delegate) EncodeErrorDidOccur(dev Device, err error) {
	log.Errorf("[Recorder] encode error on %s: %v", dev.URL(), err)
	r := d.r
	r.exec.Async(func() {
		if !r.isCurrent(dev) {
			return
		}
		r.state.Update(func(st *State) { st.RecordingResult = false })
	})
}
