//go:build linux && !portaudio

package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
)

type pulseContext struct {
	client *pulse.Client
}

func NewContext() (Context, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("obsaudio"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseContext{client: c}, nil
}

func (p *pulseContext) Devices(kind Kind) ([]DeviceInfo, error) {
	var devices []DeviceInfo
	switch kind {
	case Capture:
		sources, err := p.client.ListSources()
		if err != nil {
			return nil, fmt.Errorf("pulse list sources: %w", err)
		}
		for _, s := range sources {
			devices = append(devices, DeviceInfo{ID: s.ID(), Name: s.Name()})
		}
	case Playback:
		sinks, err := p.client.ListSinks()
		if err != nil {
			return nil, fmt.Errorf("pulse list sinks: %w", err)
		}
		for _, s := range sinks {
			devices = append(devices, DeviceInfo{ID: s.ID(), Name: s.Name()})
		}
	default:
		return nil, fmt.Errorf("pulse: unknown device kind %d", kind)
	}
	return devices, nil
}

func (p *pulseContext) NewCapture(device *DeviceInfo, config StreamConfig) (CaptureDevice, error) {
	if config.Channels < 1 || config.Channels > 2 {
		return nil, fmt.Errorf("pulse: unsupported capture channel count %d", config.Channels)
	}
	return &pulseCapture{
		client: p.client,
		device: device,
		config: config,
	}, nil
}

func (p *pulseContext) NewPlayback(device *DeviceInfo, config StreamConfig, src SourceFunc) (PlaybackDevice, error) {
	if config.Channels < 1 || config.Channels > 2 {
		return nil, fmt.Errorf("pulse: unsupported playback channel count %d", config.Channels)
	}
	return &pulsePlayback{
		client: p.client,
		device: device,
		config: config,
		src:    src,
		done:   make(chan struct{}),
	}, nil
}

func (p *pulseContext) Close() {
	p.client.Close()
}

type pulseCapture struct {
	client   *pulse.Client
	device   *DeviceInfo
	config   StreamConfig
	callback atomic.Pointer[DataCallback]

	stream *pulse.RecordStream
	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	writer := pulse.Int16Writer(func(buf []int16) (int, error) {
		if len(buf) == 0 {
			return 0, nil
		}
		cb := c.callback.Load()
		if cb == nil {
			return len(buf), nil
		}
		data := make([]byte, len(buf)*BytesPerSample)
		for i, s := range buf {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
		}
		(*cb)(data, uint32(len(buf))/c.config.Channels)
		return len(buf), nil
	})

	opts := []pulse.RecordOption{
		pulse.RecordSampleRate(int(c.config.SampleRate)),
		pulse.RecordLatency(0.05),
	}
	if c.config.Channels == 2 {
		opts = append(opts, pulse.RecordStereo)
	} else {
		opts = append(opts, pulse.RecordMono)
	}
	if c.device != nil {
		source, err := c.client.SourceByID(c.device.ID)
		if err == nil && source != nil {
			opts = append(opts, pulse.RecordSource(source))
		}
	}

	stream, err := c.client.NewRecord(writer, opts...)
	if err != nil {
		return fmt.Errorf("pulse record: %w", err)
	}

	c.stream = stream
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		stream.Start()
		<-c.stop
		stream.Stop()
		stream.Close()
	}()

	return nil
}

func (c *pulseCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		select {
		case <-c.stop:
		default:
			close(c.stop)
		}
		<-c.done
	}
}

func (c *pulseCapture) Close() {
	c.Stop()
}

func (c *pulseCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *pulseCapture) ClearCallback() {
	c.callback.Store(nil)
}

type pulsePlayback struct {
	client *pulse.Client
	device *DeviceInfo
	config StreamConfig
	src    SourceFunc
	eof    atomic.Bool

	mu       sync.Mutex
	stop     chan struct{}
	finished chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

func (p *pulsePlayback) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var scratch []byte
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if p.eof.Load() {
			return 0, pulse.EndOfData
		}
		if cap(scratch) < len(buf)*BytesPerSample {
			scratch = make([]byte, len(buf)*BytesPerSample)
		}
		b := scratch[:len(buf)*BytesPerSample]
		n, err := p.src(b)
		n -= n % BytesPerSample
		for i := 0; i < n/BytesPerSample; i++ {
			buf[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
		}
		if errors.Is(err, io.EOF) {
			p.eof.Store(true)
			if n == 0 {
				return 0, pulse.EndOfData
			}
			return n / BytesPerSample, nil
		}
		if err != nil {
			return 0, err
		}
		return n / BytesPerSample, nil
	})

	opts := []pulse.PlaybackOption{
		pulse.PlaybackSampleRate(int(p.config.SampleRate)),
		pulse.PlaybackLatency(0.1),
	}
	if p.config.Channels == 2 {
		opts = append(opts, pulse.PlaybackStereo)
	} else {
		opts = append(opts, pulse.PlaybackMono)
	}
	if p.device != nil {
		sink, err := p.client.SinkByID(p.device.ID)
		if err == nil && sink != nil {
			opts = append(opts, pulse.PlaybackSink(sink))
		}
	}

	stream, err := p.client.NewPlayback(reader, opts...)
	if err != nil {
		return fmt.Errorf("pulse playback: %w", err)
	}

	p.stop = make(chan struct{})
	p.finished = make(chan struct{})
	stop, finished := p.stop, p.finished

	go func() {
		defer close(finished)
		stream.Start()
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				stream.Stop()
				stream.Close()
				return
			case <-ticker.C:
				if !p.eof.Load() {
					continue
				}
				stream.Drain()
				stream.Stop()
				stream.Close()
				p.doneOnce.Do(func() { close(p.done) })
				return
			}
		}
	}()
	return nil
}

func (p *pulsePlayback) Stop() {
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
	<-p.finished
}

func (p *pulsePlayback) Close() {
	p.Stop()
}

func (p *pulsePlayback) Done() <-chan struct{} {
	return p.done
}
