// Package beep plays short cue tones when recording starts, ends or fails.
package beep

import (
	"io"
	"math"
	"sync"
	"sync/atomic"

	"obsaudio/audio"
	"obsaudio/log"
)

const (
	sampleRate = 44100

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End beep: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

type Cue int

const (
	Start Cue = iota
	End
	Error
)

func (c Cue) String() string {
	switch c {
	case Start:
		return "start"
	case End:
		return "end"
	case Error:
		return "error"
	}
	return "unknown"
}

// Player renders the cue tones once and plays them on an audio.Context.
// Only one cue sounds at a time; a cue requested while another plays is
// dropped.
type Player struct {
	ctx      audio.Context
	output   func() *audio.DeviceInfo
	disabled atomic.Bool
	busy     atomic.Bool

	once  sync.Once
	tones map[Cue][]int16
}

// New plays on output's device, or the default device when output is nil or
// returns nil.
func New(ctx audio.Context, output func() *audio.DeviceInfo) *Player {
	return &Player{ctx: ctx, output: output}
}

func (p *Player) Disable() { p.disabled.Store(true) }

func (p *Player) init() {
	p.tones = map[Cue][]int16{
		Start: generateTick(sampleRate, startFreq, 0.03, startVolume, startDecay),
		End:   generateTick(sampleRate, endFreq, 0.05, endVolume, endDecay),
		Error: generateDoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay),
	}
}

// Play sounds c in the background.
func (p *Player) Play(c Cue) {
	go func() {
		if err := p.PlaySync(c); err != nil {
			log.Warnf("[beep] %s: %v", c, err)
		}
	}()
}

// PlaySync sounds c and returns once the tone has drained.
func (p *Player) PlaySync(c Cue) error {
	if p.disabled.Load() {
		return nil
	}
	p.once.Do(p.init)
	samples := p.tones[c]
	if len(samples) == 0 || !p.busy.CompareAndSwap(false, true) {
		return nil
	}
	defer p.busy.Store(false)

	var device *audio.DeviceInfo
	if p.output != nil {
		device = p.output()
	}
	pos := 0
	pb, err := p.ctx.NewPlayback(device, audio.StreamConfig{SampleRate: sampleRate, Channels: 1},
		func(buf []byte) (int, error) {
			if pos >= len(samples) {
				return 0, io.EOF
			}
			n := audio.PutInt16s(buf, samples[pos:])
			pos += n / audio.BytesPerSample
			return n, nil
		})
	if err != nil {
		return err
	}
	defer pb.Close()
	if err := pb.Start(); err != nil {
		return err
	}
	<-pb.Done()
	return nil
}

func generateTick(sampleRate int, freq float64, duration float64, volume float64, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(sampleRate int, freq float64, beepDur float64, gapDur float64, volume float64, decay float64) []int16 {
	beep := generateTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}
