package recorder

import (
	"errors"
	"os"
	"sync"
	"time"
)

type fakeDevice struct {
	mu        sync.Mutex
	url       string
	settings  Settings
	recording bool
	refuse    bool
	metering  bool
	delegate  Delegate

	records   int
	stops     int
	meterCall int
}

func (d *fakeDevice) URL() string        { return d.url }
func (d *fakeDevice) Settings() Settings { return d.settings }

func (d *fakeDevice) Record() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refuse {
		return false
	}
	d.records++
	d.recording = true
	return true
}

func (d *fakeDevice) RecordFor(time.Duration) bool {
	return d.Record()
}

func (d *fakeDevice) Pause() {
	d.mu.Lock()
	d.recording = false
	d.mu.Unlock()
}

func (d *fakeDevice) Stop() {
	d.mu.Lock()
	d.stops++
	d.recording = false
	d.mu.Unlock()
}

func (d *fakeDevice) IsRecording() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recording
}

func (d *fakeDevice) SetMeteringEnabled(enabled bool) {
	d.mu.Lock()
	d.metering = enabled
	d.mu.Unlock()
}

func (d *fakeDevice) UpdateMeters() {
	d.mu.Lock()
	d.meterCall++
	d.mu.Unlock()
}

func (d *fakeDevice) AveragePower(ch int) float32 { return -20 - float32(ch) }
func (d *fakeDevice) PeakPower(ch int) float32    { return -3 - float32(ch) }

func (d *fakeDevice) SetDelegate(del Delegate) {
	d.mu.Lock()
	d.delegate = del
	d.mu.Unlock()
}

// finish simulates the device completing, as it would from its own goroutine.
func (d *fakeDevice) finish(ok bool) {
	d.mu.Lock()
	d.recording = false
	del := d.delegate
	d.mu.Unlock()
	del.DidFinishRecording(d, ok)
}

func (d *fakeDevice) encodeError(err error) {
	d.mu.Lock()
	del := d.delegate
	d.mu.Unlock()
	del.EncodeErrorDidOccur(d, err)
}

func (d *fakeDevice) touch() error {
	return os.WriteFile(d.url, []byte("RIFF"), 0644)
}

type fakeFactory struct {
	mu      sync.Mutex
	err     error
	devices []*fakeDevice
}

func (f *fakeFactory) NewRecorder(path string, s Settings) (Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	d := &fakeDevice{url: path, settings: s}
	f.devices = append(f.devices, d)
	return d, nil
}

func (f *fakeFactory) last() *fakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices[len(f.devices)-1]
}

var errUnsupported = errors.New("unsupported format")
