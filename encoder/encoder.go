package encoder

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// BlockSize is the number of frames per FLAC frame.
const BlockSize = 4096

var ErrUnsupported = errors.New("unsupported encoding")

type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Encoder consumes interleaved 16-bit blocks. A block must hold whole frames.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}

// New returns an encoder for filetype ("wav" or "flac") writing to w.
func New(filetype string, w io.WriteSeeker, f Format) (Encoder, error) {
	if f.Channels < 1 || f.SampleRate < 1 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupported, f.Channels, f.SampleRate)
	}
	if f.BitsPerSample != 16 {
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupported, f.BitsPerSample)
	}
	switch filetype {
	case "wav":
		return NewWAV(w, f), nil
	case "flac":
		return NewFlac(w, f)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, filetype)
}
