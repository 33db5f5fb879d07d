package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obsaudio/fail"
)

func TestSetupYieldsAppliedCategory(t *testing.T) {
	p := newFakePlatform()
	c := NewCategory(PlayAndRecord).WithMode(ModeVoiceChat)

	got, err := Setup(p, c).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Equal(t, PlayAndRecord, p.Category())
	assert.True(t, p.active)
}

func TestSetupRunsOnce(t *testing.T) {
	p := newFakePlatform()
	f := Setup(p, NewCategory(Record))

	_, err := f.Await(context.Background())
	require.NoError(t, err)
	_, err = f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, p.setCalls)
}

func TestSetupActivationFailure(t *testing.T) {
	p := newFakePlatform()
	p.activateErr = errors.New("busy")

	_, err := Setup(p, NewCategory(Playback)).Await(context.Background())
	assert.ErrorIs(t, err, fail.ErrActivate)
	assert.Contains(t, err.Error(), "busy")
}

func TestSetupJSONDecodeFailureSkipsPlatform(t *testing.T) {
	p := newFakePlatform()

	_, err := SetupJSON(p, []byte(`{"category":"record"}`)).Await(context.Background())
	assert.ErrorIs(t, err, fail.ErrDecode)
	assert.Zero(t, p.setCalls)
}

func TestSetupFile(t *testing.T) {
	p := newFakePlatform()
	path := filepath.Join(t.TempDir(), "category.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"category":"ambient","mode":"default","options":0}`), 0o644))

	got, err := SetupFile(p, path).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Ambient, got.Category)

	_, err = SetupFile(p, filepath.Join(t.TempDir(), "missing.json")).Await(context.Background())
	assert.ErrorIs(t, err, fail.ErrDecode)
}

func TestCheck(t *testing.T) {
	p := newFakePlatform()

	name, err := Check(p, Record)
	require.NoError(t, err)
	assert.Equal(t, Record, name)

	_, err = Check(p, MultiRoute)
	assert.ErrorIs(t, err, fail.ErrActivate)
}
