package codec

import (
	"errors"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrNotWAV = errors.New("not a WAV file")

type WAV struct{}

func (WAV) Decode(r io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if dec.BitDepth == 8 {
		// 8-bit WAV samples are unsigned.
		for i := range buf.Data {
			buf.Data[i] -= 128
		}
	}
	return fromIntBuffer(buf, int(dec.BitDepth)), nil
}

func fromIntBuffer(buf *goaudio.IntBuffer, bitDepth int) *Clip {
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = to16(v, bitDepth)
	}
	return &Clip{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Samples:    samples,
	}
}
