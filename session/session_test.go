package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obsaudio/dispatch"
	"obsaudio/fail"
)

func newTestSession(t *testing.T) (*Session, *fakePlatform, *dispatch.Queue) {
	t.Helper()
	p := newFakePlatform()
	q := dispatch.NewQueue("main")
	s := New(p, q)
	t.Cleanup(func() {
		s.Close()
		q.Close()
	})
	return s, p, q
}

func TestConfigureSuccess(t *testing.T) {
	s, p, _ := newTestSession(t)
	c := NewCategory(PlayAndRecord).WithMode(ModeVoiceChat).WithOptions(AllowBluetooth)

	require.NoError(t, s.Configure(context.Background(), c))

	st := s.State()
	assert.True(t, st.Ready)
	assert.Equal(t, c, st.Active)
	assert.Equal(t, p.inputs, st.Inputs)
	assert.Equal(t, p.outputs, st.Outputs)
	assert.Empty(t, st.ErrorDescription)

	assert.Equal(t, PlayAndRecord, p.category)
	assert.Equal(t, ModeVoiceChat, p.mode)
	assert.Equal(t, AllowBluetooth, p.options)
	assert.True(t, p.active)
}

func TestConfigureUnavailableCategory(t *testing.T) {
	s, p, _ := newTestSession(t)
	err := s.Configure(context.Background(), NewCategory(MultiRoute))

	require.Error(t, err)
	assert.ErrorIs(t, err, fail.ErrActivate)
	st := s.State()
	assert.False(t, st.Ready, "ready unchanged")
	assert.Contains(t, st.ErrorDescription, "multiRoute")
	assert.Nil(t, st.Inputs)
	assert.Zero(t, p.setCalls, "platform never touched")
}

func TestConfigureFailureKeepsPriorReady(t *testing.T) {
	s, _, _ := newTestSession(t)
	require.NoError(t, s.Configure(context.Background(), NewCategory(Playback)))

	err := s.Configure(context.Background(), NewCategory(MultiRoute))
	assert.ErrorIs(t, err, fail.ErrActivate)
	st := s.State()
	assert.True(t, st.Ready, "ready stays at its prior value")
	assert.Equal(t, NewCategory(Playback), st.Active)
	assert.NotEmpty(t, st.ErrorDescription)
}

func TestConfigureUnavailableMode(t *testing.T) {
	s, _, _ := newTestSession(t)
	err := s.Configure(context.Background(), NewCategory(Playback).WithMode(ModeGameChat))
	assert.ErrorIs(t, err, fail.ErrActivate)
	assert.Equal(t, "activate: The mode gameChat is unavailable on this device.", s.State().ErrorDescription)
}

func TestConfigureActivationError(t *testing.T) {
	s, p, _ := newTestSession(t)
	p.activateErr = errHardware

	err := s.Configure(context.Background(), NewCategory(Playback))
	assert.ErrorIs(t, err, fail.ErrActivate)
	assert.Contains(t, s.State().ErrorDescription, "hardware busy")
	assert.False(t, s.State().Ready)
}

func TestConfigureJSONDecodeFailure(t *testing.T) {
	s, p, _ := newTestSession(t)
	err := s.ConfigureJSON(context.Background(), []byte(`{"category":"playback"}`))

	assert.ErrorIs(t, err, fail.ErrDecode)
	assert.NotErrorIs(t, err, fail.ErrActivate)
	assert.Contains(t, s.State().ErrorDescription, "decode")
	assert.Zero(t, p.setCalls)
}

func TestConfigureJSON(t *testing.T) {
	s, _, _ := newTestSession(t)
	err := s.ConfigureJSON(context.Background(), []byte(`{"category":"playAndRecord","mode":"default","options":0}`))
	require.NoError(t, err)
	assert.True(t, s.State().Ready)
	assert.Equal(t, NewCategory(PlayAndRecord), s.State().Active)
}

func TestConfigureFile(t *testing.T) {
	s, _, _ := newTestSession(t)
	path := filepath.Join(t.TempDir(), "category.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"category":"record","mode":"measurement","options":0}`), 0644))

	require.NoError(t, s.ConfigureFile(context.Background(), path))
	assert.Equal(t, NewCategory(Record).WithMode(ModeMeasurement), s.State().Active)

	err := s.ConfigureFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, fail.ErrDecode)
}

func TestRouteChangeProjection(t *testing.T) {
	s, p, q := newTestSession(t)
	changes, cancel := s.Changes()
	defer cancel()

	usb := Port{ID: "usb", Name: "USB Audio", Type: "USBAudio"}
	p.plugInput(usb)
	p.routes.Publish(RouteChange{Reason: ReasonNewDeviceAvailable})

	select {
	case st := <-changes:
		assert.Equal(t, "A new device became available.", st.RouteChanged)
		assert.Contains(t, st.Inputs, usb)
		assert.Equal(t, p.outputs, st.Outputs)
	case <-time.After(time.Second):
		t.Fatal("route change not projected")
	}

	p.routes.Publish(RouteChange{Reason: Reason(99)})
	assert.Eventually(t, func() bool {
		q.Flush()
		return s.State().RouteChanged == "The reason is unknown."
	}, time.Second, time.Millisecond)
}

func TestInterruptionDoesNotChangeState(t *testing.T) {
	s, p, q := newTestSession(t)
	before := s.State()
	p.interrupts.Publish(Interruption{Type: InterruptionBegan})
	time.Sleep(5 * time.Millisecond)
	q.Flush()
	assert.Equal(t, before, s.State())
}

func TestSetPreferredInputRequiresReady(t *testing.T) {
	s, p, _ := newTestSession(t)
	mic := Port{ID: "mic"}

	s.SetPreferredInput(mic)
	assert.Nil(t, p.preferred, "not ready: no-op")

	require.NoError(t, s.Configure(context.Background(), NewCategory(PlayAndRecord)))
	s.SetPreferredInput(mic)
	require.NotNil(t, p.preferred)
	assert.Equal(t, mic, *p.preferred)
}

func TestSetPreferredInputFailureNotPublished(t *testing.T) {
	s, p, _ := newTestSession(t)
	require.NoError(t, s.Configure(context.Background(), NewCategory(PlayAndRecord)))
	p.preferredErr = errHardware

	before := s.State()
	s.SetPreferredInput(Port{ID: "mic"})
	assert.Equal(t, before, s.State())
}

func TestCloseDetachesStreams(t *testing.T) {
	s, p, _ := newTestSession(t)
	require.Equal(t, 1, p.routes.Subscribers())
	s.Close()
	assert.Equal(t, 0, p.routes.Subscribers())
	assert.Equal(t, 0, p.interrupts.Subscribers())
	s.Close()
}

func TestConfigureContextCancelled(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Configure(ctx, NewCategory(Playback))
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestSetCategoryIfChanged(t *testing.T) {
	p := newFakePlatform()
	require.NoError(t, SetCategoryIfChanged(p, SoloAmbient))
	assert.Zero(t, p.setCalls, "same category skipped")

	require.NoError(t, SetCategoryIfChanged(p, Playback))
	assert.Equal(t, 1, p.setCalls)

	err := SetCategoryIfChanged(p, MultiRoute)
	assert.ErrorIs(t, err, fail.ErrActivate)
}

func TestWatchFileReconfigures(t *testing.T) {
	s, _, _ := newTestSession(t)
	path := filepath.Join(t.TempDir(), "category.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"category":"playback","mode":"default","options":0}`), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.WatchFile(ctx, path))

	require.NoError(t, os.WriteFile(path, []byte(`{"category":"record","mode":"default","options":0}`), 0644))
	assert.Eventually(t, func() bool {
		return s.State().Active.Category == Record
	}, 3*time.Second, 10*time.Millisecond)
}
