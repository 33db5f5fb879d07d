package future

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obsaudio/dispatch"
	"obsaudio/fail"
)

func TestAwaitValue(t *testing.T) {
	f := New(fail.Create, func(context.Context) (int, error) { return 42, nil })
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestErrorMappedToKind(t *testing.T) {
	f := New(fail.Activate, func(context.Context) (string, error) {
		return "", errors.New("hardware busy")
	})
	_, err := f.Await(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fail.ErrActivate)
	assert.Equal(t, "activate: hardware busy", err.Error())
}

func TestExistingKindSurvivesMapping(t *testing.T) {
	f := New(fail.Activate, func(context.Context) (int, error) {
		return 0, fail.New(fail.Decode, "missing key mode")
	})
	_, err := f.Await(context.Background())
	assert.ErrorIs(t, err, fail.ErrDecode)
}

func TestPanicBecomesFailure(t *testing.T) {
	f := New(fail.Create, func(context.Context) (int, error) { panic("boom") })
	_, err := f.Await(context.Background())
	assert.ErrorIs(t, err, fail.ErrCreate)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunsAtMostOnce(t *testing.T) {
	var calls atomic.Int32
	f := New(fail.Create, func(context.Context) (int, error) {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return 1, nil
	})

	q := dispatch.NewQueue("once")
	defer q.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.Await(context.Background())
		}()
	}
	var delivered atomic.Int32
	f.Subscribe(q, func(int) { delivered.Add(1) }, nil)
	wg.Wait()

	// Late subscriber gets the stored result without a second run.
	f.Subscribe(q, func(int) { delivered.Add(1) }, nil)
	q.Flush()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(2), delivered.Load())
}

func TestNotStartedUntilObserved(t *testing.T) {
	var calls atomic.Int32
	f := New(fail.Create, func(context.Context) (int, error) {
		calls.Add(1)
		return 0, nil
	})
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	_, _ = f.Await(context.Background())
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubscribeDeliversOnExecutor(t *testing.T) {
	q := dispatch.NewQueue("delivery")
	defer q.Close()

	f := New(fail.Create, func(context.Context) (int, error) { return 7, nil })
	var got int
	var gotErr error
	f.Subscribe(q, func(v int) { got = v }, func(err error) { gotErr = err })

	_, _ = f.Await(context.Background())
	q.Flush()
	assert.Equal(t, 7, got)
	assert.NoError(t, gotErr)
}

func TestCancelSuppressesDelivery(t *testing.T) {
	q := dispatch.NewQueue("cancel")
	defer q.Close()

	release := make(chan struct{})
	var finished atomic.Bool
	f := New(fail.Create, func(context.Context) (int, error) {
		<-release
		finished.Store(true)
		return 1, nil
	})

	cancel := f.Subscribe(q, func(int) { t.Error("value delivered after cancel") },
		func(error) { t.Error("failure delivered after cancel") })
	cancel()
	close(release)

	_, err := f.Await(context.Background())
	require.NoError(t, err)
	q.Flush()
	assert.True(t, finished.Load(), "operation still runs to completion")
}

func TestAwaitContextAbandonsWait(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	f := New(fail.Create, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJustAndFailed(t *testing.T) {
	v, err := Just("ok").Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = Failed[int](fail.New(fail.Decode, "bad")).Await(context.Background())
	assert.ErrorIs(t, err, fail.ErrDecode)

	var failed error
	Failed[int](errors.New("x")).Subscribe(dispatch.Inline{}, nil, func(err error) { failed = err })
	assert.ErrorIs(t, failed, fail.ErrCreate)
}
