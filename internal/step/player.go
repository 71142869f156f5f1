package step

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// #region player

// Player invokes one synchronous step per tick until it is paused, its
// context is cancelled or a step fails. Cancellation is only observed between
// ticks, so a step is never interrupted half way.
type Player struct {
	stepper Stepper
	delay   time.Duration
	onStep  func(n int)

	mu     sync.Mutex
	status Status
	steps  int
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPlayer creates a player for the given stepper.
func NewPlayer(s Stepper, config PlayerConfig) (*Player, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil stepper", ErrInvalidParameter)
	}
	if config.Delay <= 0 {
		return nil, fmt.Errorf("%w: delay %s must be positive", ErrInvalidParameter, config.Delay)
	}
	return &Player{stepper: s, delay: config.Delay, status: StatusIdle}, nil
}

// OnStep registers a callback invoked after every successful step with the
// running step count.
func (p *Player) OnStep(fn func(n int)) {
	p.mu.Lock()
	p.onStep = fn
	p.mu.Unlock()
}

// Status returns the current play status.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Steps returns the number of steps taken since the last reset.
func (p *Player) Steps() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.steps
}

// StepOnce advances a single step. It fails with ErrPlaying during play.
func (p *Player) StepOnce() error {
	p.mu.Lock()
	if p.status == StatusPlaying {
		p.mu.Unlock()
		return ErrPlaying
	}
	p.mu.Unlock()

	if err := p.advance(); err != nil {
		return err
	}
	p.mu.Lock()
	p.status = StatusPaused
	p.mu.Unlock()
	return nil
}

// Play steps once per tick and blocks until maxSteps steps have run
// (0 means unbounded), Pause is called, ctx is cancelled or a step fails.
// Pausing and reaching maxSteps return nil; a cancelled ctx returns its error.
func (p *Player) Play(ctx context.Context, maxSteps int) error {
	p.mu.Lock()
	if p.status == StatusPlaying {
		p.mu.Unlock()
		return ErrPlaying
	}
	playCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.status = StatusPlaying
	p.mu.Unlock()

	defer func() {
		cancel()
		p.mu.Lock()
		p.cancel = nil
		p.done = nil
		p.status = StatusPaused
		p.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(p.delay)
	defer ticker.Stop()

	taken := 0
	for {
		select {
		case <-playCtx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		// A tick may already be queued when Pause fires.
		if playCtx.Err() != nil {
			return ctx.Err()
		}
		if err := p.advance(); err != nil {
			return err
		}
		taken++
		if maxSteps > 0 && taken >= maxSteps {
			return nil
		}
	}
}

// Pause stops a running play loop at the next tick boundary.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// Reset pauses play, waits for the play loop to exit, resets the stepper and
// clears the step count. It must not be called from an OnStep callback.
func (p *Player) Reset() {
	p.mu.Lock()
	done := p.done
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	if done != nil {
		<-done
	}
	p.stepper.Reset()
	p.mu.Lock()
	p.steps = 0
	p.status = StatusIdle
	p.mu.Unlock()
}

func (p *Player) advance() error {
	if err := p.stepper.Step(); err != nil {
		return err
	}
	p.mu.Lock()
	p.steps++
	n := p.steps
	fn := p.onStep
	p.mu.Unlock()
	if fn != nil {
		fn(n)
	}
	return nil
}

// #endregion player
