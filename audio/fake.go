package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/go-audio/wav"
)

const fakeFrameSize = 1024

// FakeContext serves capture from a fixed PCM clip and plays into memory.
// Devices can be plugged and unplugged to simulate hot-plug.
type FakeContext struct {
	pcm      []byte
	format   StreamConfig
	realtime bool

	mu      sync.Mutex
	devices map[Kind][]DeviceInfo
	played  []*FakePlayback
}

// NewFakeContext loads a 16-bit PCM WAV file as the capture clip. With
// realtime set, capture and playback are paced to the clip's sample rate.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a wav file", wavPath)
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("%s: %d-bit wav, want 16", wavPath, dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", wavPath, err)
	}
	pcm := make([]byte, len(buf.Data)*BytesPerSample)
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}
	cfg := StreamConfig{SampleRate: dec.SampleRate, Channels: uint32(dec.NumChans)}
	return NewFakeContextPCM(pcm, cfg, realtime), nil
}

// NewFakeContextPCM uses pcm, interleaved in format, as the capture clip.
func NewFakeContextPCM(pcm []byte, format StreamConfig, realtime bool) *FakeContext {
	return &FakeContext{
		pcm:      pcm,
		format:   format,
		realtime: realtime,
		devices: map[Kind][]DeviceInfo{
			Capture:  {{ID: "fake-mic", Name: "Fake Microphone"}},
			Playback: {{ID: "fake-speaker", Name: "Fake Speaker"}},
		},
	}
}

func (f *FakeContext) Devices(kind Kind) ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.devices[kind]), nil
}

func (f *FakeContext) Plug(kind Kind, d DeviceInfo) {
	f.mu.Lock()
	f.devices[kind] = append(f.devices[kind], d)
	f.mu.Unlock()
}

func (f *FakeContext) Unplug(kind Kind, id string) {
	f.mu.Lock()
	f.devices[kind] = slices.DeleteFunc(f.devices[kind], func(d DeviceInfo) bool { return d.ID == id })
	f.mu.Unlock()
}

func (f *FakeContext) Close() {}

// NewCapture converts nothing: the clip is delivered as-is, so config should
// match the clip's format.
func (f *FakeContext) NewCapture(_ *DeviceInfo, config StreamConfig) (CaptureDevice, error) {
	if config.Channels == 0 {
		return nil, errors.New("fake capture: zero channels")
	}
	return &FakeCapture{pcm: f.pcm, config: config, realtime: f.realtime, audioDone: make(chan struct{})}, nil
}

func (f *FakeContext) NewPlayback(_ *DeviceInfo, config StreamConfig, src SourceFunc) (PlaybackDevice, error) {
	if config.Channels == 0 {
		return nil, errors.New("fake playback: zero channels")
	}
	p := &FakePlayback{config: config, src: src, realtime: f.realtime, done: make(chan struct{})}
	f.mu.Lock()
	f.played = append(f.played, p)
	f.mu.Unlock()
	return p, nil
}

// Playbacks returns every playback device created so far.
func (f *FakeContext) Playbacks() []*FakePlayback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.played)
}

type FakeCapture struct {
	pcm       []byte
	config    StreamConfig
	realtime  bool
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

// AudioDone is closed once the whole clip has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/f.config.FrameSize()))
	return end
}

// Start feeds the clip followed by silence until Stop. Without realtime the
// clip is fed in bursts, one chunk per millisecond.
func (f *FakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	// audioDone is not recreated here; callers may already be waiting on it.

	chunkBytes := fakeFrameSize * f.config.FrameSize()
	interval := time.Millisecond
	if f.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(f.config.SampleRate)
	}

	go func() {
		defer close(f.feedDone)
		pos := 0
		silence := make([]byte, chunkBytes)
		audioFinished := false

		for {
			select {
			case <-f.stopCh:
				return
			default:
			}

			if cb := f.callback(); cb != nil {
				if pos < len(f.pcm) {
					pos = f.feedChunk(cb, pos, chunkBytes)
				} else {
					if !audioFinished {
						audioFinished = true
						close(f.audioDone)
					}
					cb(silence, fakeFrameSize)
				}
			}

			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()

	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() {
	f.Stop()
}

// FakePlayback pulls its source into memory.
type FakePlayback struct {
	config   StreamConfig
	src      SourceFunc
	realtime bool
	done     chan struct{}

	mu      sync.Mutex
	written []byte
	stop    chan struct{}
	stopped chan struct{}
}

func (p *FakePlayback) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop = make(chan struct{})
	p.stopped = make(chan struct{})
	stop, stopped := p.stop, p.stopped

	interval := time.Millisecond
	if p.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(p.config.SampleRate)
	}

	go func() {
		defer close(stopped)
		buf := make([]byte, fakeFrameSize*p.config.FrameSize())
		for {
			n, err := p.src(buf)
			p.mu.Lock()
			p.written = append(p.written, buf[:n]...)
			p.mu.Unlock()
			if errors.Is(err, io.EOF) {
				close(p.done)
				return
			}
			select {
			case <-stop:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

func (p *FakePlayback) Stop() {
	p.mu.Lock()
	stop, stopped := p.stop, p.stopped
	p.mu.Unlock()
	if stop == nil {
		return
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	<-stopped
}

func (p *FakePlayback) Close() {
	p.Stop()
}

func (p *FakePlayback) Done() <-chan struct{} {
	return p.done
}

// Written returns a copy of everything the source produced.
func (p *FakePlayback) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.written)
}
