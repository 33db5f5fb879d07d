package native

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"obsaudio/audio"
	"obsaudio/encoder"
	"obsaudio/log"
	"obsaudio/recorder"
)

// Silence is the level reported for a channel with no signal.
const Silence = -160

var ErrAACUnavailable = errors.New("AAC encoding is not available")

// Recorders creates recorder devices capturing from the session's current
// input. A nil session captures from the default device.
type Recorders struct {
	ctx     audio.Context
	session *Session
}

func NewRecorders(ctx audio.Context, s *Session) *Recorders {
	return &Recorders{ctx: ctx, session: s}
}

// NewRecorder validates s and checks that path can be created. Recording
// replaces the file's contents.
func (r *Recorders) NewRecorder(path string, s recorder.Settings) (recorder.Device, error) {
	filetype, err := encoding(s)
	if err != nil {
		return nil, err
	}
	format := encoder.Format{
		SampleRate:    s.SampleRate(),
		Channels:      s.Channels(),
		BitsPerSample: s.BitDepth(),
	}
	if format.Channels > 2 {
		return nil, fmt.Errorf("%d channels: %w", format.Channels, encoder.ErrUnsupported)
	}
	if format.BitsPerSample != 16 {
		return nil, fmt.Errorf("%d-bit samples: %w", format.BitsPerSample, encoder.ErrUnsupported)
	}
	if s.NonInterleaved() {
		return nil, fmt.Errorf("non-interleaved PCM: %w", encoder.ErrUnsupported)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	f.Close()

	var input *audio.DeviceInfo
	if r.session != nil {
		input = r.session.InputDevice()
	}
	return &recorderDevice{
		ctx:      r.ctx,
		input:    input,
		path:     path,
		settings: s.Clone(),
		filetype: filetype,
		format:   format,
		peak:     make([]int, format.Channels),
		sumSq:    make([]float64, format.Channels),
		avgDB:    silentLevels(format.Channels),
		peakDB:   silentLevels(format.Channels),
	}, nil
}

func encoding(s recorder.Settings) (string, error) {
	switch s.Format() {
	case recorder.FormatLinearPCM:
		return "wav", nil
	case recorder.FormatFLAC:
		return "flac", nil
	case recorder.FormatAAC:
		return "", ErrAACUnavailable
	}
	return "", fmt.Errorf("format %q: %w", s.Format(), encoder.ErrUnsupported)
}

func silentLevels(n int) []float32 {
	l := make([]float32, n)
	for i := range l {
		l[i] = Silence
	}
	return l
}

type recorderState int

const (
	idle recorderState = iota
	recording
	paused
)

type recorderDevice struct {
	ctx      audio.Context
	input    *audio.DeviceInfo
	path     string
	settings recorder.Settings
	filetype string
	format   encoder.Format

	mu       sync.Mutex
	state    recorderState
	delegate recorder.Delegate
	file     *os.File
	enc      encoder.Encoder
	capture  audio.CaptureDevice
	timer    *time.Timer

	metering bool
	peak     []int
	sumSq    []float64
	count    int
	avgDB    []float32
	peakDB   []float32
}

func (d *recorderDevice) URL() string                 { return d.path }
func (d *recorderDevice) Settings() recorder.Settings { return d.settings }

func (d *recorderDevice) SetDelegate(del recorder.Delegate) {
	d.mu.Lock()
	d.delegate = del
	d.mu.Unlock()
}

func (d *recorderDevice) SetMeteringEnabled(enabled bool) {
	d.mu.Lock()
	d.metering = enabled
	d.mu.Unlock()
}

// Record starts a new take, or resumes a paused one.
func (d *recorderDevice) Record() bool {
	d.mu.Lock()
	switch d.state {
	case recording:
		d.mu.Unlock()
		return true
	case paused:
		d.state = recording
		d.mu.Unlock()
		return true
	}
	if err := d.openLocked(); err != nil {
		log.Warnf("[native] record %s: %v", d.path, err)
		d.closeFilesLocked()
		d.mu.Unlock()
		return false
	}
	d.state = recording
	capture := d.capture
	d.mu.Unlock()

	// The capture callback takes d.mu, so Start runs unlocked.
	if err := capture.Start(); err != nil {
		log.Warnf("[native] record %s: %v", d.path, err)
		d.mu.Lock()
		d.state = idle
		d.capture = nil
		d.closeFilesLocked()
		d.mu.Unlock()
		capture.Close()
		return false
	}
	return true
}

func (d *recorderDevice) openLocked() error {
	f, err := os.Create(d.path)
	if err != nil {
		return err
	}
	d.file = f
	enc, err := encoder.New(d.filetype, f, d.format)
	if err != nil {
		return err
	}
	d.enc = enc

	capture, err := d.ctx.NewCapture(d.input, audio.StreamConfig{
		SampleRate: uint32(d.format.SampleRate),
		Channels:   uint32(d.format.Channels),
	})
	if err != nil {
		return err
	}
	capture.SetCallback(d.onData)
	d.capture = capture
	for ch := range d.format.Channels {
		d.peak[ch], d.sumSq[ch] = 0, 0
	}
	d.count = 0
	return nil
}

func (d *recorderDevice) onData(data []byte, _ uint32) {
	samples := audio.Int16s(data)
	channels := d.format.Channels
	samples = samples[:len(samples)-len(samples)%channels]

	d.mu.Lock()
	if d.state != recording || d.enc == nil {
		d.mu.Unlock()
		return
	}
	start := time.Now()
	err := d.enc.EncodeBlock(samples)
	d.enc.AddEncodeTime(time.Since(start))
	if err == nil && d.metering {
		for i, s := range samples {
			ch := i % channels
			v := int(s)
			if v < 0 {
				v = -v
			}
			d.peak[ch] = max(d.peak[ch], v)
			d.sumSq[ch] += float64(s) * float64(s)
		}
		d.count += len(samples) / channels
	}
	del := d.delegate
	d.mu.Unlock()

	if err != nil {
		if del != nil {
			del.EncodeErrorDidOccur(d, err)
		}
		go d.finish()
	}
}

// RecordFor records and stops on its own after dur.
func (d *recorderDevice) RecordFor(dur time.Duration) bool {
	if !d.Record() {
		return false
	}
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(dur, d.finish)
	d.mu.Unlock()
	return true
}

// Pause keeps the capture stream open but drops its data.
func (d *recorderDevice) Pause() {
	d.mu.Lock()
	if d.state == recording {
		d.state = paused
	}
	d.mu.Unlock()
}

func (d *recorderDevice) Stop() {
	d.finish()
}

// finish closes the take and reports it to the delegate from a new
// goroutine.
func (d *recorderDevice) finish() {
	d.mu.Lock()
	if d.state == idle {
		d.mu.Unlock()
		return
	}
	d.state = idle
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	capture := d.capture
	d.capture = nil
	d.mu.Unlock()

	// Stop outside the lock: the capture callback takes it.
	if capture != nil {
		capture.Stop()
		capture.Close()
	}

	d.mu.Lock()
	err := d.closeFilesLocked()
	del := d.delegate
	d.mu.Unlock()

	if del != nil {
		go del.DidFinishRecording(d, err == nil)
	}
}

func (d *recorderDevice) closeFilesLocked() error {
	var err error
	if d.enc != nil {
		err = d.enc.Close()
		d.enc = nil
	}
	if d.file != nil {
		if cerr := d.file.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) && err == nil {
			err = cerr
		}
		d.file = nil
	}
	return err
}

func (d *recorderDevice) IsRecording() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == recording
}

// UpdateMeters turns the levels accumulated since the previous call into
// dBFS readings.
func (d *recorderDevice) UpdateMeters() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.metering {
		return
	}
	for ch := range d.format.Channels {
		if d.count == 0 {
			d.peakDB[ch], d.avgDB[ch] = Silence, Silence
			continue
		}
		d.peakDB[ch] = dbfs(float64(d.peak[ch]))
		d.avgDB[ch] = dbfs(math.Sqrt(d.sumSq[ch] / float64(d.count)))
		d.peak[ch], d.sumSq[ch] = 0, 0
	}
	d.count = 0
}

func (d *recorderDevice) AveragePower(ch int) float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch < 0 || ch >= len(d.avgDB) {
		return Silence
	}
	return d.avgDB[ch]
}

func (d *recorderDevice) PeakPower(ch int) float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch < 0 || ch >= len(d.peakDB) {
		return Silence
	}
	return d.peakDB[ch]
}

// dbfs converts a 16-bit amplitude to decibels relative to full scale,
// clamped to [Silence, 0].
func dbfs(amplitude float64) float32 {
	if amplitude <= 0 {
		return Silence
	}
	db := 20 * math.Log10(amplitude/32768)
	return float32(min(max(db, Silence), 0))
}
