package encoder

import (
	"fmt"
	"io"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

type WAVEncoder struct {
	enc         *wav.Encoder
	format      Format
	totalFrames uint64
	encodeTime  time.Duration
	mu          sync.Mutex
}

func NewWAV(w io.WriteSeeker, f Format) *WAVEncoder {
	return &WAVEncoder{
		enc:    wav.NewEncoder(w, f.SampleRate, f.BitsPerSample, f.Channels, wavFormatPCM),
		format: f,
	}
}

func (e *WAVEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	data := make([]int, len(block))
	for i, s := range block {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: e.format.Channels, SampleRate: e.format.SampleRate},
		Data:           data,
		SourceBitDepth: e.format.BitsPerSample,
	}
	if err := e.enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	e.totalFrames += uint64(len(block) / e.format.Channels)
	e.encodeTime += time.Since(start)
	return nil
}

// Close patches the RIFF sizes. The underlying writer stays open.
func (e *WAVEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.totalFrames == 0 {
		// An empty Write still emits the header and data chunk.
		empty := &goaudio.IntBuffer{Format: &goaudio.Format{NumChannels: e.format.Channels, SampleRate: e.format.SampleRate}}
		if err := e.enc.Write(empty); err != nil {
			return fmt.Errorf("writing wav header: %w", err)
		}
	}
	return e.enc.Close()
}

func (e *WAVEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func (e *WAVEncoder) AddEncodeTime(d time.Duration) {
	e.mu.Lock()
	e.encodeTime += d
	e.mu.Unlock()
}

func (e *WAVEncoder) EncodeTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodeTime
}
