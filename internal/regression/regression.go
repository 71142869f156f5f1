package regression

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/danielpatrickdp/algo-explorer/internal/points"
	"github.com/danielpatrickdp/algo-explorer/internal/step"
	"gonum.org/v1/gonum/floats"
)

// #region engine

// Engine fits a line by full-batch gradient descent. Changing the learning
// rate keeps the accumulated weight and bias.
type Engine struct {
	pts    []points.Point
	rng    *rand.Rand
	config Config
	state  State
	last   Gradient
}

// NewEngine creates an uninitialized engine.
func NewEngine(config Config, rng *rand.Rand) (*Engine, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", step.ErrInvalidParameter)
	}
	if err := checkLearningRate(config.LearningRate); err != nil {
		return nil, err
	}
	return &Engine{rng: rng, config: config}, nil
}

// LearningRate returns the rate used by StepDefault.
func (e *Engine) LearningRate() float64 {
	return e.config.LearningRate
}

// SetLearningRate changes the default rate without touching weight or bias.
func (e *Engine) SetLearningRate(lr float64) error {
	if err := checkLearningRate(lr); err != nil {
		return err
	}
	e.config.LearningRate = lr
	return nil
}

// SetPoints replaces the point cloud and resets the fit.
func (e *Engine) SetPoints(pts []points.Point) {
	e.pts = append(make([]points.Point, 0, len(pts)), pts...)
	e.Reset()
}

// Reset discards the fit.
func (e *Engine) Reset() {
	e.state = State{}
	e.last = Gradient{}
}

// Initialize draws weight from [−1, 1] and bias from [0, 200).
func (e *Engine) Initialize() {
	e.InitializeWith(e.rng.Float64()*2-1, e.rng.Float64()*200)
}

// InitializeWith starts from an explicit line.
func (e *Engine) InitializeWith(weight, bias float64) {
	e.state = State{Weight: weight, Bias: bias, Initialized: true}
	e.last = Gradient{}
}

// #endregion engine

// #region step

// StepDefault steps with the configured learning rate.
func (e *Engine) StepDefault() error {
	return e.Step(e.config.LearningRate)
}

// Step applies one full-batch gradient descent update and records the loss
// of the updated line. An empty point cloud is a no-op and leaves the engine
// without a line; otherwise an uninitialized engine only initializes.
func (e *Engine) Step(learningRate float64) error {
	if err := checkLearningRate(learningRate); err != nil {
		return err
	}
	if len(e.pts) == 0 {
		return nil
	}
	if !e.state.Initialized {
		e.Initialize()
		return nil
	}

	g := ComputeGradient(e.pts, e.state.Weight, e.state.Bias, e.config.OriginOffset)
	e.state.Weight -= learningRate * g.DWeight
	e.state.Bias -= learningRate * g.DBias
	e.last = g

	loss := Loss(e.pts, e.state.Weight, e.state.Bias, e.config.OriginOffset)
	e.state.LossHistory = append(e.state.LossHistory, loss)
	if over := len(e.state.LossHistory) - HistoryLimit; over > 0 {
		e.state.LossHistory = append([]float64(nil), e.state.LossHistory[over:]...)
	}
	e.state.Iteration++
	return nil
}

func checkLearningRate(lr float64) error {
	if math.IsNaN(lr) || math.IsInf(lr, 0) || lr <= 0 {
		return fmt.Errorf("%w: learning rate %v must be positive and finite", step.ErrInvalidParameter, lr)
	}
	return nil
}

// #endregion step

// #region snapshot

// Snapshot returns a deep copy of the fit with its current loss.
func (e *Engine) Snapshot() Snapshot {
	st := e.state
	st.LossHistory = append([]float64(nil), e.state.LossHistory...)
	snap := Snapshot{
		Points:       append([]points.Point(nil), e.pts...),
		State:        st,
		LearningRate: e.config.LearningRate,
		OriginOffset: e.config.OriginOffset,
	}
	if st.Initialized {
		snap.Loss = Loss(e.pts, st.Weight, st.Bias, e.config.OriginOffset)
	}
	return snap
}

// LastGradient returns the gradient applied by the most recent step.
func (e *Engine) LastGradient() Gradient {
	return e.last
}

// #endregion snapshot

// #region math

// Predict evaluates the line at x.
func Predict(weight, bias, offset, x float64) float64 {
	return weight*(x-offset) + bias
}

// Loss is the mean squared error Σ(prediction − y)²/n, 0 for no points.
func Loss(pts []points.Point, weight, bias, offset float64) float64 {
	if len(pts) == 0 {
		return 0
	}
	residuals := residuals(pts, weight, bias, offset)
	return floats.Dot(residuals, residuals) / float64(len(pts))
}

// ComputeGradient returns the full-batch mean gradient of Loss with respect
// to weight and bias.
func ComputeGradient(pts []points.Point, weight, bias, offset float64) Gradient {
	n := float64(len(pts))
	if n == 0 {
		return Gradient{}
	}
	res := residuals(pts, weight, bias, offset)
	xs := make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = p.X - offset
	}
	return Gradient{
		DWeight: 2 * floats.Dot(res, xs) / n,
		DBias:   2 * floats.Sum(res) / n,
	}
}

func residuals(pts []points.Point, weight, bias, offset float64) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = Predict(weight, bias, offset, p.X) - p.Y
	}
	return out
}

// #endregion math
