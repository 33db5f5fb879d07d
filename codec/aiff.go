package codec

import (
	"errors"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
)

var ErrNotAIFF = errors.New("not an AIFF file")

type AIFF struct{}

func (AIFF) Decode(r io.ReadSeeker) (*Clip, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotAIFF
	}
	dec.ReadInfo()
	format := dec.Format()
	if format == nil {
		return nil, ErrNotAIFF
	}

	var data []int
	buf := &goaudio.IntBuffer{Format: format, Data: make([]int, 4096)}
	for {
		n, err := dec.PCMBuffer(buf)
		data = append(data, buf.Data[:n]...)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if n == 0 || errors.Is(err, io.EOF) {
			break
		}
	}
	return fromIntBuffer(&goaudio.IntBuffer{Format: format, Data: data}, int(dec.BitDepth)), nil
}
