//go:build !linux && !portaudio

package audio

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices(kind Kind) ([]DeviceInfo, error) {
	var dt malgo.DeviceType
	switch kind {
	case Capture:
		dt = malgo.Capture
	case Playback:
		dt = malgo.Playback
	default:
		return nil, fmt.Errorf("malgo: unknown device kind %d", kind)
	}
	devices, err := m.ctx.Devices(dt)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	var result []DeviceInfo
	for _, d := range devices {
		result = append(result, DeviceInfo{
			ID:   hex.EncodeToString(d.ID[:]),
			Name: d.Name(),
		})
	}
	return result, nil
}

func deviceID(device *DeviceInfo) (*malgo.DeviceID, error) {
	if device == nil {
		return nil, nil
	}
	idBytes, err := hex.DecodeString(device.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid device ID: %w", err)
	}
	var devID malgo.DeviceID
	copy(devID[:], idBytes)
	return &devID, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, config StreamConfig) (CaptureDevice, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = config.Channels
	deviceConfig.SampleRate = config.SampleRate

	id, err := deviceID(device)
	if err != nil {
		return nil, err
	}
	if id != nil {
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	c := &malgoCapture{}
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			if cb := c.callback.Load(); cb != nil {
				(*cb)(data, frameCount)
			}
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, err
	}
	c.device = dev
	return c, nil
}

func (m *malgoContext) NewPlayback(device *DeviceInfo, config StreamConfig, src SourceFunc) (PlaybackDevice, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = config.Channels
	deviceConfig.SampleRate = config.SampleRate

	id, err := deviceID(device)
	if err != nil {
		return nil, err
	}
	if id != nil {
		deviceConfig.Playback.DeviceID = id.Pointer()
	}

	p := &malgoPlayback{src: src, drained: make(chan struct{}), done: make(chan struct{})}
	callbacks := malgo.DeviceCallbacks{
		Data: p.fill,
	}
	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, err
	}
	p.device = dev
	return p, nil
}

func (m *malgoContext) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

type malgoCapture struct {
	device   *malgo.Device
	callback atomic.Pointer[DataCallback]
}

func (c *malgoCapture) Start() error {
	return c.device.Start()
}

func (c *malgoCapture) Stop() {
	c.device.Stop()
}

func (c *malgoCapture) Close() {
	c.device.Uninit()
}

func (c *malgoCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *malgoCapture) ClearCallback() {
	c.callback.Store(nil)
}

type malgoPlayback struct {
	device *malgo.Device
	src    SourceFunc
	eof    atomic.Bool

	drained   chan struct{}
	drainOnce sync.Once
	done      chan struct{}

	mu      sync.Mutex
	stop    chan struct{}
	watcher chan struct{}
}

// fill runs on the miniaudio thread and must not block.
func (p *malgoPlayback) fill(out, _ []byte, _ uint32) {
	n := 0
	if !p.eof.Load() {
		var err error
		n, err = p.src(out)
		if errors.Is(err, io.EOF) {
			p.eof.Store(true)
		}
	}
	clear(out[n:])
	if n == 0 && p.eof.Load() {
		p.drainOnce.Do(func() { close(p.drained) })
	}
}

func (p *malgoPlayback) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.device.Start(); err != nil {
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
			p.device.Stop()
			close(p.done)
		}
	}()
	return nil
}

func (p *malgoPlayback) Stop() {
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
	p.device.Stop()
}

func (p *malgoPlayback) Close() {
	p.Stop()
	p.device.Uninit()
}

func (p *malgoPlayback) Done() <-chan struct{} {
	return p.done
}
