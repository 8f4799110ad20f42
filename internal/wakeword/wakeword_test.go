package wakeword

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerReleasesOneWait(t *testing.T) {
	tr := NewTrigger()
	assert.True(t, tr.Fire())
	assert.False(t, tr.Fire(), "second trigger coalesces with the pending one")

	require.NoError(t, tr.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.Wait(ctx), context.DeadlineExceeded)
}

func TestTriggerFromAnotherGoroutine(t *testing.T) {
	tr := NewTrigger()
	go func() {
		time.Sleep(10 * time.Millisecond)
		tr.Fire()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Wait(ctx))
}

type blockingDetector struct{ released chan struct{} }

func (d blockingDetector) Wait(ctx context.Context) error {
	<-ctx.Done()
	close(d.released)
	return ctx.Err()
}

func TestFirst(t *testing.T) {
	tr := NewTrigger()
	mic := blockingDetector{released: make(chan struct{})}
	d := First(mic, tr)

	tr.Fire()
	require.NoError(t, d.Wait(context.Background()))

	select {
	case <-mic.released:
	default:
		t.Fatal("losing detector still running after Wait returned")
	}

	boom := errors.New("mic unplugged")
	d = First(failingDetector{err: boom}, NewTrigger())
	require.ErrorIs(t, d.Wait(context.Background()), boom)

	assert.Same(t, tr, First(tr))
}

func TestFirstKeepsLosingTrigger(t *testing.T) {
	for range 50 {
		a, b := NewTrigger(), NewTrigger()
		a.Fire()
		b.Fire()

		require.NoError(t, First(a, b).Wait(context.Background()))

		pending := 0
		for _, tr := range []*Trigger{a, b} {
			if !tr.Fire() {
				pending++
			}
		}
		require.Equal(t, 1, pending, "exactly one fire is consumed per Wait")
	}
}

type countCue struct {
	n   int
	err error
}

func (c *countCue) Play(context.Context) error {
	c.n++
	return c.err
}

type failingDetector struct{ err error }

func (d failingDetector) Wait(context.Context) error { return d.err }

func TestWithCue(t *testing.T) {
	tr := NewTrigger()
	cue := &countCue{}
	d := WithCue(tr, cue)

	tr.Fire()
	require.NoError(t, d.Wait(context.Background()))
	assert.Equal(t, 1, cue.n)

	cue.err = errors.New("no sound card")
	tr.Fire()
	require.NoError(t, d.Wait(context.Background()), "earcon failure is not a detection failure")
	assert.Equal(t, 2, cue.n)

	boom := errors.New("mic unplugged")
	d = WithCue(failingDetector{err: boom}, cue)
	require.ErrorIs(t, d.Wait(context.Background()), boom)
	assert.Equal(t, 2, cue.n)

	assert.Same(t, tr, WithCue(tr, nil))
}
