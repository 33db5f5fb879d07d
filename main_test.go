package main

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obsaudio/audio"
	"obsaudio/player"
	"obsaudio/recorder"
	"obsaudio/session"
)

func toneContext(frames int) *audio.FakeContext {
	samples := make([]int16, frames)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	pcm := make([]byte, len(samples)*audio.BytesPerSample)
	audio.PutInt16s(pcm, samples)
	return audio.NewFakeContextPCM(pcm, audio.StreamConfig{SampleRate: 16000, Channels: 1}, false)
}

func monoSettings() recorder.Settings {
	s := recorder.PCMMono()
	s[recorder.KeySampleRate] = 16000.0
	return s
}

func newTestApp(t *testing.T, ctx audio.Context) *app {
	t.Helper()
	a, err := newApp(ctx, "fake", monoSettings(), time.Hour)
	require.NoError(t, err)
	a.cues.Disable()
	t.Cleanup(a.Close)
	return a
}

func TestHeadlessRecordAndPlayback(t *testing.T) {
	ctx := toneContext(16000)
	a := newTestApp(t, ctx)
	require.NoError(t, a.configure(context.Background(), ""))
	a.rec.ResetAt(filepath.Join(t.TempDir(), "take.wav"), monoSettings())

	assert.Equal(t, 0, runHeadless(context.Background(), a, 50*time.Millisecond))
	assert.True(t, a.rec.State().RecordingResult)
	require.NotEmpty(t, ctx.Playbacks())
	assert.NotEmpty(t, ctx.Playbacks()[0].Written())
}

func TestConfigureDefaultCategory(t *testing.T) {
	a := newTestApp(t, toneContext(160))
	require.NoError(t, a.configure(context.Background(), ""))
	a.queue.Flush()
	assert.Equal(t, session.NewCategory(session.PlayAndRecord), a.session.State().Active)
}

func TestCycleCategory(t *testing.T) {
	a := newTestApp(t, toneContext(160))
	require.NoError(t, a.configure(context.Background(), ""))
	require.NoError(t, a.cycleCategory(context.Background()))
	a.queue.Flush()
	// Fake devices have one output, so multiRoute is never offered.
	assert.Equal(t, session.Ambient, a.session.State().Active.Category)
}

func TestWaitForTimesOut(t *testing.T) {
	a := newTestApp(t, toneContext(160))
	ok := waitFor(context.Background(), a.play.Changes, a.play.State,
		func(st player.State) bool { return st.Ready }, 10*time.Millisecond)
	assert.False(t, ok)
}

func TestRenderMeter(t *testing.T) {
	silent := renderMeter(-160, -160)
	loud := renderMeter(0, 0)
	assert.Equal(t, meterWidth, strings.Count(silent, "·"))
	assert.Equal(t, meterWidth, strings.Count(loud, "█"))
	assert.Equal(t, 1, strings.Count(renderMeter(-30, -6), "│"))
}

func TestPortList(t *testing.T) {
	ports := []session.Port{
		{ID: "a", Name: "Built-in"},
		{ID: "b", Name: "AirPods", Type: "Bluetooth"},
	}
	got := portList(ports, ports[1:])
	assert.Contains(t, got, "Built-in")
	assert.Contains(t, got, "[AirPods (BT!)]")
	assert.Contains(t, portList(nil, nil), "none")
}

func TestPresetNamesSorted(t *testing.T) {
	names := presetNames()
	assert.Len(t, names, len(recorder.Presets))
	assert.IsNonDecreasing(t, names)
}
