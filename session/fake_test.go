package session

import (
	"errors"
	"sync"

	"obsaudio/event"
)

type fakePlatform struct {
	mu         sync.Mutex
	categories []Name
	modes      []Mode
	category   Name
	mode       Mode
	options    Options
	active     bool
	inputs     []Port
	outputs    []Port
	preferred  *Port

	activateErr  error
	preferredErr error
	setCalls     int

	routes     *event.Stream[RouteChange]
	interrupts *event.Stream[Interruption]
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		categories: []Name{Ambient, SoloAmbient, Playback, Record, PlayAndRecord},
		modes:      []Mode{ModeDefault, ModeVoiceChat, ModeMeasurement},
		category:   SoloAmbient,
		inputs:     []Port{{ID: "mic", Name: "Built-in Microphone", Type: "MicrophoneBuiltIn"}},
		outputs:    []Port{{ID: "spk", Name: "Speaker", Type: "Speaker"}},
		routes:     event.NewStream[RouteChange](),
		interrupts: event.NewStream[Interruption](),
	}
}

func (f *fakePlatform) AvailableCategories() []Name {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Name(nil), f.categories...)
}

func (f *fakePlatform) AvailableModes() []Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Mode(nil), f.modes...)
}

func (f *fakePlatform) Category() Name {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.category
}

func (f *fakePlatform) SetCategory(name Name, mode Mode, opts Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	f.category, f.mode, f.options = name, mode, opts
	return nil
}

func (f *fakePlatform) SetActive(active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activateErr != nil {
		return f.activateErr
	}
	f.active = active
	return nil
}

func (f *fakePlatform) AvailableInputs() []Port {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Port(nil), f.inputs...)
}

func (f *fakePlatform) CurrentRoute() Route {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := Route{Outputs: append([]Port(nil), f.outputs...)}
	if len(f.inputs) > 0 {
		r.Inputs = f.inputs[:1]
	}
	return r
}

func (f *fakePlatform) SetPreferredInput(port Port) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.preferredErr != nil {
		return f.preferredErr
	}
	f.preferred = &port
	return nil
}

func (f *fakePlatform) RouteChanges() *event.Stream[RouteChange]    { return f.routes }
func (f *fakePlatform) Interruptions() *event.Stream[Interruption] { return f.interrupts }

func (f *fakePlatform) plugInput(p Port) {
	f.mu.Lock()
	f.inputs = append(f.inputs, p)
	f.mu.Unlock()
}

var errHardware = errors.New("hardware busy")
