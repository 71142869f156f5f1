package step

import (
	"errors"
	"time"
)

// #region errors

// ErrInvalidParameter is returned when a hyper-parameter is outside its valid
// range. The engine that rejected it is left untouched.
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrPlaying is returned by StepOnce and Play while a play loop is running.
var ErrPlaying = errors.New("player is already playing")

// #endregion errors

// #region stepper

// Stepper advances an engine by one phase. Step must complete synchronously.
type Stepper interface {
	Step() error
	Reset()
}

// Funcs adapts a pair of functions to a Stepper.
type Funcs struct {
	StepFn  func() error
	ResetFn func()
}

// Step calls StepFn.
func (f Funcs) Step() error {
	if f.StepFn == nil {
		return nil
	}
	return f.StepFn()
}

// Reset calls ResetFn.
func (f Funcs) Reset() {
	if f.ResetFn != nil {
		f.ResetFn()
	}
}

// #endregion stepper

// #region status

// Status is the play state of a Player.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
)

// #endregion status

// #region player-config

// PlayerConfig holds the tick delay between scheduled steps.
type PlayerConfig struct {
	Delay time.Duration
}

// DefaultPlayerConfig returns the delay used by the interactive front-ends.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{Delay: 400 * time.Millisecond}
}

// #endregion player-config
