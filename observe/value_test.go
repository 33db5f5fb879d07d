package observe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state struct {
	Ready bool
	Level []float32
}

func TestUpdateAndLoad(t *testing.T) {
	v := NewValue(state{})
	v.Update(func(s *state) { s.Ready = true })
	assert.True(t, v.Load().Ready)
}

func TestSubscribeReceivesLatest(t *testing.T) {
	v := NewValue(state{})
	ch, cancel := v.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		v.Update(func(s *state) { s.Level = []float32{float32(i)} })
	}

	select {
	case got := <-ch:
		require.Len(t, got.Level, 1)
		assert.Equal(t, float32(4), got.Level[0])
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	v := NewValue(state{})
	ch, cancel := v.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	// Updates after cancel do not panic on the closed channel.
	v.Update(func(s *state) { s.Ready = true })
}

func TestUpdateDoesNotAliasPriorSnapshot(t *testing.T) {
	v := NewValue(state{Level: []float32{1}})
	before := v.Load()
	v.Update(func(s *state) { s.Level = []float32{2} })
	assert.Equal(t, float32(1), before.Level[0])
	assert.Equal(t, float32(2), v.Load().Level[0])
}
