package recorder

import (
	"maps"
	"os"
	"path/filepath"
)

// Settings keys understood by every recorder backend.
const (
	KeyFormat         = "format"
	KeySampleRate     = "sampleRate"
	KeyChannels       = "channels"
	KeyBitDepth       = "bitDepth"
	KeyNonInterleaved = "nonInterleaved"
	KeyQuality        = "quality"
	KeyFileType       = "filetype"
)

type Format string

const (
	FormatLinearPCM Format = "lpcm"
	FormatAAC       Format = "aac"
	FormatFLAC      Format = "flac"
)

// Encoder quality levels, on the 0..127 scale platform encoders use.
const (
	QualityMin    = 0
	QualityLow    = 0x20
	QualityMedium = 0x40
	QualityHigh   = 0x60
	QualityMax    = 0x7F
)

const defaultSampleRate = 44100

// Settings is a string-keyed recorder configuration. Values are whatever the
// caller put in; accessors normalise the numeric ones.
type Settings map[string]any

func PCMStereo() Settings {
	return Settings{
		KeyFormat:         FormatLinearPCM,
		KeyNonInterleaved: false,
		KeySampleRate:     44100.0,
		KeyChannels:       2,
		KeyBitDepth:       16,
		KeyFileType:       "wav",
	}
}

func PCMMono() Settings {
	return Settings{
		KeyFormat:         FormatLinearPCM,
		KeyNonInterleaved: false,
		KeySampleRate:     44100.0,
		KeyChannels:       1,
		KeyBitDepth:       16,
		KeyFileType:       "wav",
	}
}

func AACStereo() Settings {
	return Settings{
		KeyFormat:         FormatAAC,
		KeyNonInterleaved: false,
		KeySampleRate:     44100.0,
		KeyChannels:       2,
		KeyQuality:        QualityMedium,
		KeyFileType:       "aac",
	}
}

func AACMono() Settings {
	return Settings{
		KeyFormat:     FormatAAC,
		KeySampleRate: 44100.0,
		KeyChannels:   1,
		KeyQuality:    QualityMedium,
		KeyFileType:   "aac",
	}
}

func FLACStereo() Settings {
	return Settings{
		KeyFormat:     FormatFLAC,
		KeySampleRate: 44100.0,
		KeyChannels:   2,
		KeyBitDepth:   16,
		KeyFileType:   "flac",
	}
}

func FLACMono() Settings {
	return Settings{
		KeyFormat:     FormatFLAC,
		KeySampleRate: 44100.0,
		KeyChannels:   1,
		KeyBitDepth:   16,
		KeyFileType:   "flac",
	}
}

// Presets maps the names accepted by the demo's -settings flag.
var Presets = map[string]func() Settings{
	"pcm-stereo":  PCMStereo,
	"pcm-mono":    PCMMono,
	"aac-stereo":  AACStereo,
	"aac-mono":    AACMono,
	"flac-stereo": FLACStereo,
	"flac-mono":   FLACMono,
}

func (s Settings) Clone() Settings {
	return maps.Clone(s)
}

func (s Settings) Format() Format {
	switch v := s[KeyFormat].(type) {
	case Format:
		return v
	case string:
		return Format(v)
	}
	return ""
}

// Channels returns the channel count, 1 when unset or invalid.
func (s Settings) Channels() int {
	if n, ok := intValue(s[KeyChannels]); ok && n > 0 {
		return n
	}
	return 1
}

func (s Settings) SampleRate() int {
	if n, ok := intValue(s[KeySampleRate]); ok && n > 0 {
		return n
	}
	return defaultSampleRate
}

// BitDepth returns the PCM bit depth, 16 when unset.
func (s Settings) BitDepth() int {
	if n, ok := intValue(s[KeyBitDepth]); ok && n > 0 {
		return n
	}
	return 16
}

func (s Settings) NonInterleaved() bool {
	b, _ := s[KeyNonInterleaved].(bool)
	return b
}

func (s Settings) Quality() int {
	n, _ := intValue(s[KeyQuality])
	return n
}

func (s Settings) FileType() string {
	t, _ := s[KeyFileType].(string)
	return t
}

// DefaultPath is where a recorder writes when no explicit path is given:
// recording.<filetype> in the temporary directory.
func DefaultPath(s Settings) string {
	return filepath.Join(os.TempDir(), "recording."+s.FileType())
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint32:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
