package beep

import (
	"testing"

	"obsaudio/audio"
)

func newFake() *audio.FakeContext {
	return audio.NewFakeContextPCM(nil, audio.StreamConfig{SampleRate: sampleRate, Channels: 1}, false)
}

func TestPlaySyncWritesTone(t *testing.T) {
	ctx := newFake()
	p := New(ctx, nil)
	for _, c := range []Cue{Start, End, Error} {
		if err := p.PlaySync(c); err != nil {
			t.Fatalf("PlaySync(%s): %v", c, err)
		}
	}
	pbs := ctx.Playbacks()
	if len(pbs) != 3 {
		t.Fatalf("got %d playbacks, want 3", len(pbs))
	}
	want := []int{
		int(sampleRate*0.03) * audio.BytesPerSample,
		int(sampleRate*0.05) * audio.BytesPerSample,
		(2*int(sampleRate*0.08) + int(sampleRate*0.05)) * audio.BytesPerSample,
	}
	for i, pb := range pbs {
		if got := len(pb.Written()); got != want[i] {
			t.Errorf("cue %d wrote %d bytes, want %d", i, got, want[i])
		}
	}
}

func TestDisabled(t *testing.T) {
	ctx := newFake()
	p := New(ctx, nil)
	p.Disable()
	if err := p.PlaySync(Start); err != nil {
		t.Fatal(err)
	}
	if n := len(ctx.Playbacks()); n != 0 {
		t.Fatalf("disabled player opened %d playbacks", n)
	}
}

func TestOutputDevice(t *testing.T) {
	ctx := newFake()
	asked := 0
	p := New(ctx, func() *audio.DeviceInfo {
		asked++
		return &audio.DeviceInfo{ID: "fake-speaker"}
	})
	if err := p.PlaySync(End); err != nil {
		t.Fatal(err)
	}
	if asked != 1 {
		t.Fatalf("output asked %d times, want 1", asked)
	}
}

func TestTickEnvelopeDecays(t *testing.T) {
	s := generateTick(sampleRate, startFreq, 0.03, startVolume, startDecay)
	peak := func(part []int16) int {
		m := 0
		for _, v := range part {
			m = max(m, abs(int(v)))
		}
		return m
	}
	head, tail := peak(s[:len(s)/4]), peak(s[3*len(s)/4:])
	if tail >= head {
		t.Fatalf("tail peak %d not below head peak %d", tail, head)
	}
	if head > int(32767*float64(startVolume)) {
		t.Fatalf("head peak %d above volume", head)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
