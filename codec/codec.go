// Package codec decodes audio files into 16-bit PCM clips by delegating to
// format libraries.
package codec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmptyClip         = errors.New("no audio frames")
)

// Clip is a fully decoded source: interleaved 16-bit samples.
type Clip struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

func (c *Clip) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

type Decoder interface {
	Decode(r io.ReadSeeker) (*Clip, error)
}

// Registry maps lower-case file extensions, dot included, to decoders.
type Registry struct {
	mu       sync.Mutex
	decoders map[string]Decoder
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// DefaultRegistry knows WAV, AIFF, MP3, Ogg Vorbis and FLAC.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(".wav", WAV{})
	r.Register(".wave", WAV{})
	r.Register(".aif", AIFF{})
	r.Register(".aiff", AIFF{})
	r.Register(".mp3", MP3{})
	r.Register(".ogg", Vorbis{})
	r.Register(".oga", Vorbis{})
	r.Register(".flac", FLAC{})
	return r
}

func (r *Registry) Register(ext string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[strings.ToLower(ext)] = d
}

func (r *Registry) Get(ext string) (Decoder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.decoders[strings.ToLower(ext)]
	return d, ok
}

// DecodeFile picks a decoder by path's extension.
func (r *Registry) DecodeFile(path string) (*Clip, error) {
	ext := filepath.Ext(path)
	d, ok := r.Get(ext)
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", path, ErrUnsupportedFormat, ext)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	clip, err := d.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if clip.Frames() == 0 {
		return nil, fmt.Errorf("decoding %s: %w", path, ErrEmptyClip)
	}
	return clip, nil
}

// to16 rescales a signed sample of the given bit depth to 16 bits.
func to16(v int, bitDepth int) int16 {
	switch {
	case bitDepth < 16:
		return int16(v << (16 - bitDepth))
	case bitDepth > 16:
		return int16(v >> (bitDepth - 16))
	}
	return int16(v)
}

func floatTo16(f float32) int16 {
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	return int16(f * 32767)
}
