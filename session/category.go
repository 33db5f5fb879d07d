package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"obsaudio/fail"
)

// Name identifies a session category.
type Name string

const (
	Ambient       Name = "ambient"
	SoloAmbient   Name = "soloAmbient"
	Playback      Name = "playback"
	Record        Name = "record"
	PlayAndRecord Name = "playAndRecord"
	MultiRoute    Name = "multiRoute"
)

// NeedsInput reports whether the category routes audio from an input.
func (n Name) NeedsInput() bool {
	return n == Record || n == PlayAndRecord || n == MultiRoute
}

// NeedsOutput reports whether the category routes audio to an output.
func (n Name) NeedsOutput() bool {
	return n != Record
}

type Mode string

const (
	ModeDefault        Mode = "default"
	ModeGameChat       Mode = "gameChat"
	ModeMeasurement    Mode = "measurement"
	ModeMoviePlayback  Mode = "moviePlayback"
	ModeSpokenAudio    Mode = "spokenAudio"
	ModeVideoChat      Mode = "videoChat"
	ModeVideoRecording Mode = "videoRecording"
	ModeVoiceChat      Mode = "voiceChat"
	ModeVoicePrompt    Mode = "voicePrompt"
)

// Options is a bitmask of category options.
type Options uint64

const (
	MixWithOthers                        Options = 0x1
	DuckOthers                           Options = 0x2
	AllowBluetooth                       Options = 0x4
	DefaultToSpeaker                     Options = 0x8
	InterruptSpokenAudioAndMixWithOthers Options = 0x11
	AllowBluetoothA2DP                   Options = 0x20
	AllowAirPlay                         Options = 0x40
	OverrideMutedMicrophoneInterruption  Options = 0x80

	knownOptions = MixWithOthers | DuckOthers | AllowBluetooth | DefaultToSpeaker |
		InterruptSpokenAudioAndMixWithOthers | AllowBluetoothA2DP | AllowAirPlay |
		OverrideMutedMicrophoneInterruption
)

func (o Options) Has(flag Options) bool { return o&flag == flag }

func (o Options) String() string {
	if o == 0 {
		return "none"
	}
	names := []struct {
		flag Options
		name string
	}{
		{MixWithOthers, "mixWithOthers"},
		{DuckOthers, "duckOthers"},
		{AllowBluetooth, "allowBluetooth"},
		{DefaultToSpeaker, "defaultToSpeaker"},
		{0x10, "interruptSpokenAudio"},
		{AllowBluetoothA2DP, "allowBluetoothA2DP"},
		{AllowAirPlay, "allowAirPlay"},
		{OverrideMutedMicrophoneInterruption, "overrideMutedMicrophoneInterruption"},
	}
	var parts []string
	for _, n := range names {
		if o.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if rest := o &^ knownOptions; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint64(rest)))
	}
	return strings.Join(parts, "|")
}

// Category is the category/mode/options triple a session is configured
// with. Availability is checked when the category is applied, not here.
type Category struct {
	Category Name
	Mode     Mode
	Options  Options
}

func NewCategory(name Name) Category {
	return Category{Category: name, Mode: ModeDefault}
}

func (c Category) WithMode(m Mode) Category       { c.Mode = m; return c }
func (c Category) WithOptions(o Options) Category { c.Options = o; return c }

func (c Category) String() string {
	return fmt.Sprintf("%s/%s/%s", c.Category, c.Mode, c.Options)
}

type categoryJSON struct {
	Category string `json:"category"`
	Mode     string `json:"mode"`
	Options  uint64 `json:"options"`
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(categoryJSON{
		Category: string(c.Category),
		Mode:     string(c.Mode),
		Options:  uint64(c.Options),
	})
}

// UnmarshalJSON decodes all three keys or nothing: c is left untouched when
// any key is missing, mistyped or unrecognized.
func (c *Category) UnmarshalJSON(data []byte) error {
	var raw struct {
		Category *string         `json:"category"`
		Mode     *string         `json:"mode"`
		Options  json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fail.Wrap(fail.Decode, err)
	}

	switch {
	case raw.Category == nil:
		return fail.New(fail.Decode, `missing key "category"`)
	case raw.Mode == nil:
		return fail.New(fail.Decode, `missing key "mode"`)
	case raw.Options == nil:
		return fail.New(fail.Decode, `missing key "options"`)
	case *raw.Category == "":
		return fail.New(fail.Decode, "empty category")
	case *raw.Mode == "":
		return fail.New(fail.Decode, "empty mode")
	}

	opts, err := parseOptions(raw.Options)
	if err != nil {
		return err
	}

	*c = Category{
		Category: Name(*raw.Category),
		Mode:     Mode(*raw.Mode),
		Options:  opts,
	}
	return nil
}

// parseOptions accepts only a JSON number; a quoted number is a type
// mismatch.
func parseOptions(raw json.RawMessage) (Options, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fail.Wrap(fail.Decode, err)
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fail.Newf(fail.Decode, "options must be a number, got %s", raw)
	}
	f, err := n.Float64()
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxUint32 {
		return 0, fail.Newf(fail.Decode, "invalid options %q", n.String())
	}
	o := Options(f)
	if rest := o &^ knownOptions; rest != 0 {
		return 0, fail.Newf(fail.Decode, "unrecognized options bits 0x%x", uint64(rest))
	}
	return o, nil
}

// DecodeCategory parses the JSON form of a Category.
func DecodeCategory(data []byte) (Category, error) {
	var c Category
	if err := json.Unmarshal(data, &c); err != nil {
		return Category{}, fail.Wrap(fail.Decode, err)
	}
	return c, nil
}

func EncodeCategory(c Category) ([]byte, error) {
	return json.Marshal(c)
}

