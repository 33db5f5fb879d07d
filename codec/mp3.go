package codec

import (
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// MP3 always yields stereo; go-mp3 upmixes mono streams.
type MP3 struct{}

func (MP3) Decode(r io.ReadSeeker) (*Clip, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
	}
	return &Clip{SampleRate: dec.SampleRate(), Channels: 2, Samples: samples}, nil
}
