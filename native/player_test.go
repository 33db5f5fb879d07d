package native

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obsaudio/audio"
	"obsaudio/dispatch"
	"obsaudio/encoder"
	"obsaudio/player"
	"obsaudio/session"
)

// writeClip encodes samples to a mono WAV file under t's temp dir.
func writeClip(t *testing.T, samples []int16) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc, err := encoder.New("wav", f, encoder.Format{SampleRate: testRate, Channels: 1, BitsPerSample: 16})
	require.NoError(t, err)
	require.NoError(t, enc.EncodeBlock(samples))
	require.NoError(t, enc.Close())
	f.Close()
	return path
}

type playDelegate struct {
	finished chan bool
}

func (d *playDelegate) DidFinishPlaying(_ player.Device, ok bool)     { d.finished <- ok }
func (d *playDelegate) DecodeErrorDidOccur(_ player.Device, _ error) {}

func newTestPlayer(t *testing.T, samples []int16) (player.Device, *audio.FakeContext, *playDelegate) {
	t.Helper()
	ctx := audio.NewFakeContextPCM(nil, audio.StreamConfig{SampleRate: testRate, Channels: 1}, false)
	dev, err := NewPlayers(ctx, nil, nil).NewPlayer(writeClip(t, samples))
	require.NoError(t, err)
	del := &playDelegate{finished: make(chan bool, 4)}
	dev.SetDelegate(del)
	return dev, ctx, del
}

func (d *playDelegate) wait(t *testing.T) bool {
	t.Helper()
	select {
	case ok := <-d.finished:
		return ok
	case <-time.After(2 * time.Second):
		t.Fatal("playback never finished")
		return false
	}
}

func TestPlayToEnd(t *testing.T) {
	clip := sine(3000, 1)
	dev, ctx, del := newTestPlayer(t, clip)
	assert.Equal(t, 375*time.Millisecond, dev.Duration())

	require.True(t, dev.Play())
	assert.True(t, del.wait(t))
	assert.False(t, dev.IsPlaying())
	assert.Equal(t, dev.Duration(), dev.CurrentTime())

	pbs := ctx.Playbacks()
	require.Len(t, pbs, 1)
	assert.Equal(t, pcmBytes(clip), pbs[0].Written())
}

func TestPlayLoops(t *testing.T) {
	clip := sine(1500, 1)
	dev, ctx, del := newTestPlayer(t, clip)
	dev.SetLoops(1)

	require.True(t, dev.Play())
	assert.True(t, del.wait(t))

	want := append(pcmBytes(clip), pcmBytes(clip)...)
	assert.Equal(t, want, ctx.Playbacks()[0].Written())
}

func TestPlayAgainRewinds(t *testing.T) {
	clip := sine(500, 1)
	dev, ctx, del := newTestPlayer(t, clip)

	require.True(t, dev.Play())
	del.wait(t)
	require.True(t, dev.Play())
	del.wait(t)

	pbs := ctx.Playbacks()
	require.Len(t, pbs, 2)
	assert.Equal(t, pcmBytes(clip), pbs[1].Written())
}

func TestStopKeepsPosition(t *testing.T) {
	// Long enough that the fake drains it over several milliseconds.
	clip := sine(testRate*10, 1)
	dev, _, del := newTestPlayer(t, clip)

	require.True(t, dev.Play())
	require.Eventually(t, func() bool { return dev.CurrentTime() > 0 }, time.Second, time.Millisecond)
	dev.Stop()
	assert.False(t, dev.IsPlaying())
	pos := dev.CurrentTime()
	assert.Less(t, pos, dev.Duration())

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, pos, dev.CurrentTime())
	select {
	case <-del.finished:
		t.Fatal("stopped playback reported as finished")
	default:
	}
}

func TestSetCurrentTimeClamps(t *testing.T) {
	dev, _, _ := newTestPlayer(t, sine(testRate, 1))

	dev.SetCurrentTime(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, dev.CurrentTime())
	dev.SetCurrentTime(-time.Second)
	assert.Equal(t, time.Duration(0), dev.CurrentTime())
	dev.SetCurrentTime(time.Hour)
	assert.Equal(t, time.Second, dev.CurrentTime())
}

func TestNewPlayerErrors(t *testing.T) {
	ctx := audio.NewFakeContextPCM(nil, audio.StreamConfig{SampleRate: testRate, Channels: 1}, false)
	p := NewPlayers(ctx, nil, nil)

	_, err := p.NewPlayer(filepath.Join(t.TempDir(), "absent.wav"))
	assert.Error(t, err)

	junk := filepath.Join(t.TempDir(), "junk.txt")
	require.NoError(t, os.WriteFile(junk, []byte("hello"), 0o644))
	_, err = p.NewPlayer(junk)
	assert.Error(t, err)
}

func TestPlayerUsesSessionOutput(t *testing.T) {
	ctx := audio.NewFakeContextPCM(nil, audio.StreamConfig{SampleRate: testRate, Channels: 1}, false)
	s, err := NewSession(ctx, time.Hour)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.SetCategory(session.Playback, session.ModeDefault, 0))
	assert.Equal(t, "fake-speaker", s.OutputDevice().ID)

	dev, err := NewPlayers(ctx, nil, s).NewPlayer(writeClip(t, sine(100, 1)))
	require.NoError(t, err)
	require.True(t, dev.Play())
	require.Eventually(t, func() bool { return !dev.IsPlaying() }, time.Second, time.Millisecond)
}

func TestObservablePlayerOverFakeDevices(t *testing.T) {
	ctx := audio.NewFakeContextPCM(nil, audio.StreamConfig{SampleRate: testRate, Channels: 1}, false)
	q := dispatch.NewQueue("main")
	p := player.New(NewPlayers(ctx, nil, nil), q, 5*time.Millisecond)
	t.Cleanup(func() {
		p.Close()
		q.Close()
	})

	p.Prepare(writeClip(t, sine(2000, 1)))
	require.Eventually(t, func() bool { return p.State().Ready }, time.Second, time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, p.Duration())

	p.Play(false)
	require.Eventually(t, func() bool { return len(ctx.Playbacks()) == 1 }, time.Second, time.Millisecond)
	select {
	case <-ctx.Playbacks()[0].Done():
	case <-time.After(2 * time.Second):
		t.Fatal("playback never drained")
	}
	require.Eventually(t, func() bool { return !p.State().IsPlaying }, time.Second, time.Millisecond)
}
