package step

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region helpers

type countingStepper struct {
	steps  int
	resets int
	failAt int
}

func (c *countingStepper) Step() error {
	c.steps++
	if c.failAt > 0 && c.steps == c.failAt {
		return errors.New("boom")
	}
	return nil
}

func (c *countingStepper) Reset() {
	c.resets++
	c.steps = 0
}

// slowStepper takes longer than a tick, so a tick is queued when a step ends.
type slowStepper struct {
	steps  atomic.Int32
	resets atomic.Int32
	sleep  time.Duration
}

func (s *slowStepper) Step() error {
	time.Sleep(s.sleep)
	s.steps.Add(1)
	return nil
}

func (s *slowStepper) Reset() {
	s.resets.Add(1)
}

func fastPlayer(t *testing.T, s Stepper) *Player {
	t.Helper()
	p, err := NewPlayer(s, PlayerConfig{Delay: time.Millisecond})
	require.NoError(t, err)
	return p
}

// #endregion helpers

func TestNewPlayer_RejectsBadConfig(t *testing.T) {
	_, err := NewPlayer(&countingStepper{}, PlayerConfig{})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = NewPlayer(nil, DefaultPlayerConfig())
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestPlayer_StepOnce(t *testing.T) {
	s := &countingStepper{}
	p := fastPlayer(t, s)
	assert.Equal(t, StatusIdle, p.Status())

	require.NoError(t, p.StepOnce())
	require.NoError(t, p.StepOnce())

	assert.Equal(t, 2, s.steps)
	assert.Equal(t, 2, p.Steps())
	assert.Equal(t, StatusPaused, p.Status())
}

func TestPlayer_PlayStopsAtMaxSteps(t *testing.T) {
	s := &countingStepper{}
	p := fastPlayer(t, s)

	var seen []int
	p.OnStep(func(n int) { seen = append(seen, n) })

	require.NoError(t, p.Play(context.Background(), 3))
	assert.Equal(t, 3, s.steps)
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, StatusPaused, p.Status())
}

func TestPlayer_PauseAtTickBoundary(t *testing.T) {
	s := &countingStepper{}
	p := fastPlayer(t, s)
	p.OnStep(func(n int) {
		if n == 2 {
			p.Pause()
		}
	})

	require.NoError(t, p.Play(context.Background(), 0))
	assert.Equal(t, 2, s.steps)
}

func TestPlayer_PauseWithQueuedTick(t *testing.T) {
	for trial := 0; trial < 20; trial++ {
		s := &slowStepper{sleep: 3 * time.Millisecond}
		p := fastPlayer(t, s)
		p.OnStep(func(n int) {
			if n == 1 {
				p.Pause()
			}
		})

		require.NoError(t, p.Play(context.Background(), 0))
		require.Equal(t, int32(1), s.steps.Load(), "trial %d", trial)
	}
}

func TestPlayer_ResetDuringPlay(t *testing.T) {
	s := &slowStepper{sleep: time.Millisecond}
	p := fastPlayer(t, s)
	started := make(chan struct{})
	p.OnStep(func(n int) {
		if n == 1 {
			close(started)
		}
	})

	errc := make(chan error, 1)
	go func() { errc <- p.Play(context.Background(), 0) }()
	<-started

	p.Reset()
	require.NoError(t, <-errc)
	assert.Equal(t, StatusIdle, p.Status())
	assert.Equal(t, 0, p.Steps())
	assert.Equal(t, int32(1), s.resets.Load())
}

func TestPlayer_ContextCancel(t *testing.T) {
	s := &countingStepper{}
	p := fastPlayer(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	p.OnStep(func(n int) {
		if n == 4 {
			cancel()
		}
	})

	err := p.Play(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 4, s.steps)
}

func TestPlayer_StepErrorStopsPlay(t *testing.T) {
	s := &countingStepper{failAt: 2}
	p := fastPlayer(t, s)

	err := p.Play(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, 2, s.steps)
	assert.Equal(t, 1, p.Steps())
}

func TestPlayer_StepOnceWhilePlaying(t *testing.T) {
	s := &countingStepper{}
	p := fastPlayer(t, s)

	var inner error
	p.OnStep(func(n int) {
		if n == 1 {
			inner = p.StepOnce()
		}
	})
	require.NoError(t, p.Play(context.Background(), 2))
	assert.ErrorIs(t, inner, ErrPlaying)
}

func TestPlayer_Reset(t *testing.T) {
	s := &countingStepper{}
	p := fastPlayer(t, s)
	require.NoError(t, p.StepOnce())

	p.Reset()
	assert.Equal(t, 1, s.resets)
	assert.Equal(t, 0, p.Steps())
	assert.Equal(t, StatusIdle, p.Status())
}

func TestFuncs_NilSafe(t *testing.T) {
	var f Funcs
	assert.NoError(t, f.Step())
	f.Reset()
}
