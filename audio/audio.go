package audio

import (
	"errors"
	"strings"
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Samples cross this package as interleaved signed 16-bit little-endian PCM.
const BytesPerSample = 2

var ErrCancelled = errors.New("device selection cancelled")

type Kind int

const (
	Capture Kind = iota + 1
	Playback
)

func (k Kind) String() string {
	switch k {
	case Capture:
		return "capture"
	case Playback:
		return "playback"
	}
	return "unknown"
}

// DataCallback receives captured frames. data is only valid during the call.
type DataCallback func(data []byte, frameCount uint32)

// SourceFunc fills buf with frames to play and returns the number of bytes
// written. It returns io.EOF once nothing is left; bytes written alongside
// io.EOF are still played.
type SourceFunc func(buf []byte) (int, error)

type StreamConfig struct {
	SampleRate uint32
	Channels   uint32
}

// FrameSize is the byte size of one interleaved frame.
func (c StreamConfig) FrameSize() int {
	return int(c.Channels) * BytesPerSample
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices(kind Kind) ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config StreamConfig) (CaptureDevice, error)
	NewPlayback(device *DeviceInfo, config StreamConfig, src SourceFunc) (PlaybackDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// PlaybackDevice plays its source once; create a new one to play again.
type PlaybackDevice interface {
	Start() error
	Stop()
	Close()
	// Done is closed once the source has returned io.EOF and its last frames
	// have been played. It stays open if the device is stopped first.
	Done() <-chan struct{}
}
