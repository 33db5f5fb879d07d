package native

import (
	"io"
	"sync"
	"time"

	"obsaudio/audio"
	"obsaudio/codec"
	"obsaudio/log"
	"obsaudio/player"
)

// Players decodes whole files up front and streams them to the session's
// current output. A nil session plays on the default device.
type Players struct {
	ctx      audio.Context
	registry *codec.Registry
	session  *Session
}

func NewPlayers(ctx audio.Context, registry *codec.Registry, s *Session) *Players {
	if registry == nil {
		registry = codec.DefaultRegistry()
	}
	return &Players{ctx: ctx, registry: registry, session: s}
}

func (p *Players) NewPlayer(path string) (player.Device, error) {
	clip, err := p.registry.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	log.Infof("[native] decoded %s: %d Hz, %d ch, %s", path, clip.SampleRate, clip.Channels, clip.Duration())
	return &playerDevice{ctx: p.ctx, players: p, path: path, clip: clip}, nil
}

type playerDevice struct {
	ctx     audio.Context
	players *Players
	path    string
	clip    *codec.Clip

	mu       sync.Mutex
	delegate player.Delegate
	pos      int // frame index
	loops    int
	left     int // loops remaining in the current run
	playback audio.PlaybackDevice
	stopped  chan struct{}
}

func (d *playerDevice) URL() string             { return d.path }
func (d *playerDevice) Duration() time.Duration { return d.clip.Duration() }

func (d *playerDevice) SetDelegate(del player.Delegate) {
	d.mu.Lock()
	d.delegate = del
	d.mu.Unlock()
}

func (d *playerDevice) SetLoops(n int) {
	d.mu.Lock()
	d.loops = n
	d.mu.Unlock()
}

func (d *playerDevice) Play() bool {
	d.mu.Lock()
	if d.playback != nil {
		d.mu.Unlock()
		return true
	}
	if d.pos >= d.clip.Frames() {
		d.pos = 0
	}
	d.left = d.loops
	d.mu.Unlock()

	var output *audio.DeviceInfo
	if d.players.session != nil {
		output = d.players.session.OutputDevice()
	}
	pb, err := d.ctx.NewPlayback(output, audio.StreamConfig{
		SampleRate: uint32(d.clip.SampleRate),
		Channels:   uint32(d.clip.Channels),
	}, d.read)
	if err != nil {
		log.Warnf("[native] playback %s: %v", d.path, err)
		return false
	}

	d.mu.Lock()
	if d.playback != nil {
		d.mu.Unlock()
		pb.Close()
		return true
	}
	stopped := make(chan struct{})
	d.playback, d.stopped = pb, stopped
	d.mu.Unlock()

	// The source takes d.mu, so Start runs unlocked.
	if err := pb.Start(); err != nil {
		log.Warnf("[native] playback %s: %v", d.path, err)
		d.mu.Lock()
		if d.playback == pb {
			d.playback, d.stopped = nil, nil
		}
		d.mu.Unlock()
		pb.Close()
		return false
	}
	go d.watch(pb, stopped)
	return true
}

// read is the playback source. It wraps around while loops remain.
func (d *playerDevice) read(buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	channels := d.clip.Channels
	frameBytes := channels * audio.BytesPerSample
	written := 0
	for written+frameBytes <= len(buf) {
		if d.pos >= d.clip.Frames() {
			if d.left == 0 {
				return written, io.EOF
			}
			if d.left > 0 {
				d.left--
			}
			d.pos = 0
		}
		end := min(d.clip.Frames(), d.pos+(len(buf)-written)/frameBytes)
		written += audio.PutInt16s(buf[written:], d.clip.Samples[d.pos*channels:end*channels])
		d.pos = end
	}
	return written, nil
}

func (d *playerDevice) watch(pb audio.PlaybackDevice, stopped <-chan struct{}) {
	select {
	case <-stopped:
		return
	case <-pb.Done():
	}

	d.mu.Lock()
	if d.playback != pb {
		d.mu.Unlock()
		return
	}
	d.playback = nil
	d.stopped = nil
	del := d.delegate
	d.mu.Unlock()

	pb.Close()
	if del != nil {
		del.DidFinishPlaying(d, true)
	}
}

// Stop halts playback and keeps the position.
func (d *playerDevice) Stop() {
	d.mu.Lock()
	pb, stopped := d.playback, d.stopped
	d.playback, d.stopped = nil, nil
	d.mu.Unlock()
	if pb == nil {
		return
	}
	close(stopped)
	pb.Close()
}

func (d *playerDevice) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playback != nil
}

func (d *playerDevice) CurrentTime() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Duration(d.pos) * time.Second / time.Duration(d.clip.SampleRate)
}

func (d *playerDevice) SetCurrentTime(t time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pos := int(t * time.Duration(d.clip.SampleRate) / time.Second)
	d.pos = min(max(pos, 0), d.clip.Frames())
}
