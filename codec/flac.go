package codec

import (
	"errors"
	"io"

	"github.com/mewkiz/flac"
)

type FLAC struct{}

func (FLAC) Decode(r io.ReadSeeker) (*Clip, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bitDepth := int(stream.Info.BitsPerSample)
	var samples []int16
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		n := int(f.BlockSize)
		for i := range n {
			for ch := range channels {
				samples = append(samples, to16(int(f.Subframes[ch].Samples[i]), bitDepth))
			}
		}
	}
	return &Clip{SampleRate: int(stream.Info.SampleRate), Channels: channels, Samples: samples}, nil
}
