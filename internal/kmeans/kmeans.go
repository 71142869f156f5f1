package kmeans

import (
	"fmt"
	"math/rand/v2"

	"github.com/danielpatrickdp/algo-explorer/internal/points"
	"github.com/danielpatrickdp/algo-explorer/internal/step"
	"gonum.org/v1/gonum/stat"
)

// #region engine

// Engine runs k-means one phase at a time. It cycles assign → update forever;
// deciding when to stop is up to the caller.
type Engine struct {
	pts       []points.Point
	k         int
	rng       *rand.Rand
	state     State
	converged bool
}

// NewEngine creates an uninitialized engine with k clusters.
func NewEngine(k int, rng *rand.Rand) (*Engine, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", step.ErrInvalidParameter)
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: k=%d must be at least 1", step.ErrInvalidParameter, k)
	}
	return &Engine{k: k, rng: rng}, nil
}

// K returns the configured number of clusters.
func (e *Engine) K() int {
	return e.k
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	return e.state.Phase
}

// SetPoints replaces the point cloud and resets the engine.
func (e *Engine) SetPoints(pts []points.Point) {
	e.pts = append(make([]points.Point, 0, len(pts)), pts...)
	e.Reset()
}

// SetK changes k and resets the engine.
func (e *Engine) SetK(k int) error {
	if err := e.checkK(k); err != nil {
		return err
	}
	e.k = k
	e.Reset()
	return nil
}

// Reset discards all derived state.
func (e *Engine) Reset() {
	e.state = State{Phase: PhaseUninitialized}
	e.converged = false
}

// #endregion engine

// #region initialize

// Initialize samples k points uniformly at random, with replacement, as the
// initial centroids. An empty point cloud leaves the engine uninitialized.
func (e *Engine) Initialize(k int) error {
	if err := e.checkK(k); err != nil {
		return err
	}
	e.k = k
	if len(e.pts) == 0 {
		e.Reset()
		return nil
	}
	centroids := make([]points.Point, k)
	for i := range centroids {
		p := e.pts[e.rng.IntN(len(e.pts))]
		centroids[i] = points.Point{X: p.X, Y: p.Y, Label: points.NoLabel}
	}
	e.start(centroids)
	return nil
}

// Seed starts the cycle from explicit centroids.
func (e *Engine) Seed(centroids []points.Point) error {
	if err := e.checkK(len(centroids)); err != nil {
		return err
	}
	if len(e.pts) == 0 {
		return fmt.Errorf("%w: cannot seed centroids without points", step.ErrInvalidParameter)
	}
	e.k = len(centroids)
	seeded := make([]points.Point, len(centroids))
	for i, c := range centroids {
		seeded[i] = points.Point{X: c.X, Y: c.Y, Label: points.NoLabel}
	}
	e.start(seeded)
	return nil
}

func (e *Engine) start(centroids []points.Point) {
	assignment := make([]int, len(e.pts))
	for i := range assignment {
		assignment[i] = -1
	}
	e.state = State{
		Centroids:  centroids,
		Assignment: assignment,
		Phase:      PhaseAssign,
	}
	e.converged = false
}

func (e *Engine) checkK(k int) error {
	if k < 1 {
		return fmt.Errorf("%w: k=%d must be at least 1", step.ErrInvalidParameter, k)
	}
	if len(e.pts) > 0 && k > len(e.pts) {
		return fmt.Errorf("%w: k=%d exceeds %d points", step.ErrInvalidParameter, k, len(e.pts))
	}
	return nil
}

// #endregion initialize

// #region step

// Step advances one phase: initialize, assign or update.
func (e *Engine) Step() error {
	switch e.state.Phase {
	case PhaseUninitialized:
		return e.Initialize(e.k)
	case PhaseAssign:
		return e.StepAssign()
	default:
		return e.StepUpdate()
	}
}

// StepAssign moves every point to its nearest centroid. Exact distance ties
// go to the lowest centroid index.
func (e *Engine) StepAssign() error {
	if e.state.Phase != PhaseAssign {
		return fmt.Errorf("%w: assign in phase %s", ErrOutOfPhase, e.state.Phase)
	}
	changed := false
	for i, p := range e.pts {
		best := 0
		bestDist := p.SquaredDistance(e.state.Centroids[0])
		for j := 1; j < len(e.state.Centroids); j++ {
			if d := p.SquaredDistance(e.state.Centroids[j]); d < bestDist {
				best = j
				bestDist = d
			}
		}
		if e.state.Assignment[i] != best {
			changed = true
		}
		e.state.Assignment[i] = best
	}
	e.state.Inertia = Inertia(e.pts, e.state.Centroids, e.state.Assignment)
	e.converged = !changed
	e.state.Phase = PhaseUpdate
	return nil
}

// StepUpdate moves every centroid to the mean of its assigned points. A
// centroid with no points keeps its previous position.
func (e *Engine) StepUpdate() error {
	if e.state.Phase != PhaseUpdate {
		return fmt.Errorf("%w: update in phase %s", ErrOutOfPhase, e.state.Phase)
	}
	k := len(e.state.Centroids)
	xs := make([][]float64, k)
	ys := make([][]float64, k)
	for i, c := range e.state.Assignment {
		if c < 0 {
			continue
		}
		xs[c] = append(xs[c], e.pts[i].X)
		ys[c] = append(ys[c], e.pts[i].Y)
	}
	for j := 0; j < k; j++ {
		if len(xs[j]) == 0 {
			continue
		}
		e.state.Centroids[j] = points.Point{
			X:     stat.Mean(xs[j], nil),
			Y:     stat.Mean(ys[j], nil),
			Label: points.NoLabel,
		}
	}
	// Centroids moved, so inertia is recomputed against the same assignment.
	e.state.Inertia = Inertia(e.pts, e.state.Centroids, e.state.Assignment)
	e.state.Iteration++
	e.state.Phase = PhaseAssign
	return nil
}

// #endregion step

// #region snapshot

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	st := State{
		Inertia:   e.state.Inertia,
		Phase:     e.state.Phase,
		Iteration: e.state.Iteration,
	}
	if e.state.Centroids != nil {
		st.Centroids = append([]points.Point(nil), e.state.Centroids...)
	}
	if e.state.Assignment != nil {
		st.Assignment = append([]int(nil), e.state.Assignment...)
	}
	return Snapshot{
		Points:    append([]points.Point(nil), e.pts...),
		K:         e.k,
		State:     st,
		Sizes:     Sizes(st.Assignment, len(st.Centroids)),
		Converged: e.converged,
	}
}

// #endregion snapshot

// #region metrics

// Inertia is the sum of squared distances from each assigned point to its
// centroid. Unassigned points contribute nothing.
func Inertia(pts []points.Point, centroids []points.Point, assignment []int) float64 {
	var sum float64
	for i, c := range assignment {
		if c < 0 || c >= len(centroids) {
			continue
		}
		sum += pts[i].SquaredDistance(centroids[c])
	}
	return sum
}

// Sizes counts the points assigned to each of k clusters.
func Sizes(assignment []int, k int) []int {
	sizes := make([]int, k)
	for _, c := range assignment {
		if c >= 0 && c < k {
			sizes[c]++
		}
	}
	return sizes
}

// #endregion metrics
