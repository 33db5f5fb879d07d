//go:build portaudio

package audio

// Built with -tags portaudio; needs the PortAudio C library
// (brew install portaudio, apt-get install portaudio19-dev).

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

type paContext struct{}

func NewContext() (Context, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	return paContext{}, nil
}

// paID names a device by host API and name; PortAudio indexes change when
// devices come and go.
func paID(d *portaudio.DeviceInfo) string {
	if d.HostApi == nil {
		return d.Name
	}
	return d.HostApi.Name + ":" + d.Name
}

func (paContext) Devices(kind Kind) ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio devices: %w", err)
	}
	var result []DeviceInfo
	for _, d := range devices {
		if kind == Capture && d.MaxInputChannels == 0 || kind == Playback && d.MaxOutputChannels == 0 {
			continue
		}
		result = append(result, DeviceInfo{ID: paID(d), Name: d.Name})
	}
	return result, nil
}

func lookup(device *DeviceInfo, kind Kind) (*portaudio.DeviceInfo, error) {
	if device == nil {
		if kind == Capture {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio devices: %w", err)
	}
	for _, d := range devices {
		if paID(d) == device.ID {
			return d, nil
		}
	}
	return nil, fmt.Errorf("portaudio: no %s device %q", kind, device.Name)
}

func (paContext) NewCapture(device *DeviceInfo, config StreamConfig) (CaptureDevice, error) {
	dev, err := lookup(device, Capture)
	if err != nil {
		return nil, err
	}
	params := portaudio.HighLatencyParameters(dev, nil)
	params.Input.Channels = int(config.Channels)
	params.SampleRate = float64(config.SampleRate)

	c := &paCapture{channels: int(config.Channels)}
	stream, err := portaudio.OpenStream(params, c.process)
	if err != nil {
		return nil, fmt.Errorf("open capture stream: %w", err)
	}
	c.stream = stream
	return c, nil
}

func (paContext) NewPlayback(device *DeviceInfo, config StreamConfig, src SourceFunc) (PlaybackDevice, error) {
	dev, err := lookup(device, Playback)
	if err != nil {
		return nil, err
	}
	params := portaudio.HighLatencyParameters(nil, dev)
	params.Output.Channels = int(config.Channels)
	params.SampleRate = float64(config.SampleRate)

	p := &paPlayback{src: src, drained: make(chan struct{}), done: make(chan struct{})}
	stream, err := portaudio.OpenStream(params, p.process)
	if err != nil {
		return nil, fmt.Errorf("open playback stream: %w", err)
	}
	p.stream = stream
	return p, nil
}

func (paContext) Close() {
	portaudio.Terminate()
}

type paCapture struct {
	stream   *portaudio.Stream
	channels int
	callback atomic.Pointer[DataCallback]
	buf      []byte
}

// process runs on the PortAudio thread; in is reused after it returns.
func (c *paCapture) process(in []int16) {
	cb := c.callback.Load()
	if cb == nil {
		return
	}
	if need := len(in) * BytesPerSample; cap(c.buf) < need {
		c.buf = make([]byte, need)
	}
	n := PutInt16s(c.buf[:cap(c.buf)], in)
	(*cb)(c.buf[:n], uint32(len(in)/c.channels))
}

func (c *paCapture) Start() error { return c.stream.Start() }
func (c *paCapture) Stop()        { c.stream.Stop() }
func (c *paCapture) Close()       { c.stream.Close() }

func (c *paCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *paCapture) ClearCallback() {
	c.callback.Store(nil)
}

type paPlayback struct {
	stream *portaudio.Stream
	src    SourceFunc
	eof    atomic.Bool
	buf    []byte

	drained   chan struct{}
	drainOnce sync.Once
	done      chan struct{}

	mu      sync.Mutex
	stop    chan struct{}
	watcher chan struct{}
}

func (p *paPlayback) process(out []int16) {
	n := 0
	if !p.eof.Load() {
		if need := len(out) * BytesPerSample; cap(p.buf) < need {
			p.buf = make([]byte, need)
		}
		var err error
		n, err = p.src(p.buf[:len(out)*BytesPerSample])
		if errors.Is(err, io.EOF) {
			p.eof.Store(true)
		}
		n = copy(out, Int16s(p.buf[:n]))
	}
	clear(out[n:])
	if n == 0 && p.eof.Load() {
		p.drainOnce.Do(func() { close(p.drained) })
	}
}

func (p *paPlayback) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.stream.Start(); err != nil {
		return err
	}
	p.stop = make(chan struct{})
	p.watcher = make(chan struct{})
	stop, watcher := p.stop, p.watcher
	go func() {
		defer close(watcher)
		select {
		case <-stop:
		case <-p.drained:
			p.stream.Stop()
			close(p.done)
		}
	}()
	return nil
}

func (p *paPlayback) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return
	}
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	<-p.watcher
	p.stream.Stop()
}

func (p *paPlayback) Close() {
	p.Stop()
	p.stream.Close()
}

func (p *paPlayback) Done() <-chan struct{} {
	return p.done
}
