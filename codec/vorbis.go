package codec

import (
	"io"

	"github.com/jfreymuth/oggvorbis"
)

type Vorbis struct{}

func (Vorbis) Decode(r io.ReadSeeker) (*Clip, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	samples := make([]int16, len(data))
	for i, f := range data {
		samples[i] = floatTo16(f)
	}
	return &Clip{SampleRate: format.SampleRate, Channels: format.Channels, Samples: samples}, nil
}
