package kmeans

import (
	"math/rand/v2"
	"testing"

	"github.com/danielpatrickdp/algo-explorer/internal/points"
	"github.com/danielpatrickdp/algo-explorer/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region helpers

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func line() []points.Point {
	return []points.Point{
		{X: 0, Y: 0, Label: points.NoLabel},
		{X: 10, Y: 0, Label: points.NoLabel},
		{X: 20, Y: 0, Label: points.NoLabel},
	}
}

func blobs(t *testing.T, seed uint64) []points.Point {
	t.Helper()
	s, err := points.Generate(newRand(seed), points.DefaultGenerateConfig())
	require.NoError(t, err)
	return s.Points()
}

func bruteInertia(pts []points.Point, snap Snapshot) float64 {
	var sum float64
	for i, c := range snap.State.Assignment {
		dx := pts[i].X - snap.State.Centroids[c].X
		dy := pts[i].Y - snap.State.Centroids[c].Y
		sum += dx*dx + dy*dy
	}
	return sum
}

// #endregion helpers

// #region scenario-tests

// Equidistant point goes to the lowest centroid index; update averages it in.
func TestEngine_TieBreakScenario(t *testing.T) {
	e, err := NewEngine(2, newRand(1))
	require.NoError(t, err)
	e.SetPoints(line())
	require.NoError(t, e.Seed([]points.Point{{X: 0, Y: 0}, {X: 20, Y: 0}}))

	require.NoError(t, e.StepAssign())
	snap := e.Snapshot()
	assert.Equal(t, []int{0, 0, 1}, snap.State.Assignment)
	assert.Equal(t, PhaseUpdate, snap.State.Phase)
	assert.Equal(t, 100.0, snap.State.Inertia)

	require.NoError(t, e.StepUpdate())
	snap = e.Snapshot()
	assert.Equal(t, 5.0, snap.State.Centroids[0].X)
	assert.Equal(t, 0.0, snap.State.Centroids[0].Y)
	assert.Equal(t, 20.0, snap.State.Centroids[1].X)
	assert.Equal(t, 1, snap.State.Iteration)
	assert.Equal(t, PhaseAssign, snap.State.Phase)
	assert.Equal(t, []int{2, 1}, snap.Sizes)
	assert.Equal(t, 50.0, snap.State.Inertia)
}

func TestEngine_EmptyClusterKeepsCentroid(t *testing.T) {
	e, err := NewEngine(3, newRand(1))
	require.NoError(t, err)
	e.SetPoints([]points.Point{{X: 0, Y: 0}, {X: 1, Y: 0}})
	require.NoError(t, e.Seed([]points.Point{{X: 0, Y: 0}, {X: 100, Y: 100}, {X: 0.5, Y: 0}}))

	require.NoError(t, e.StepAssign())
	require.NoError(t, e.StepUpdate())

	snap := e.Snapshot()
	assert.Equal(t, points.Point{X: 100, Y: 100, Label: points.NoLabel}, snap.State.Centroids[1])
	assert.Equal(t, 0, snap.Sizes[1])
}

// #endregion scenario-tests

// #region property-tests

func TestEngine_InertiaMatchesAssignment(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		pts := blobs(t, seed)
		e, err := NewEngine(4, newRand(seed))
		require.NoError(t, err)
		e.SetPoints(pts)

		for i := 0; i < 12; i++ {
			require.NoError(t, e.Step())
			snap := e.Snapshot()
			if snap.State.Phase == PhaseUpdate {
				assert.GreaterOrEqual(t, snap.State.Inertia, 0.0)
				assert.InDelta(t, bruteInertia(pts, snap), snap.State.Inertia, 1e-9)
			}
		}
	}
}

func TestEngine_UpdateIsExactMean(t *testing.T) {
	pts := blobs(t, 42)
	e, err := NewEngine(3, newRand(42))
	require.NoError(t, err)
	e.SetPoints(pts)
	require.NoError(t, e.Initialize(3))

	for iter := 0; iter < 4; iter++ {
		require.NoError(t, e.StepAssign())
		require.NoError(t, e.StepUpdate())
		snap := e.Snapshot()

		for j, c := range snap.State.Centroids {
			var sx, sy float64
			n := 0
			for i, a := range snap.State.Assignment {
				if a == j {
					sx += pts[i].X
					sy += pts[i].Y
					n++
				}
			}
			if n == 0 {
				continue
			}
			assert.InDelta(t, sx/float64(n), c.X, 1e-9)
			assert.InDelta(t, sy/float64(n), c.Y, 1e-9)
		}
	}
}

func TestEngine_InertiaNeverIncreasesAcrossAssign(t *testing.T) {
	pts := blobs(t, 9)
	e, err := NewEngine(3, newRand(9))
	require.NoError(t, err)
	e.SetPoints(pts)
	require.NoError(t, e.Initialize(3))
	require.NoError(t, e.StepAssign())

	prev := e.Snapshot().State.Inertia
	for i := 0; i < 6; i++ {
		require.NoError(t, e.StepUpdate())
		require.NoError(t, e.StepAssign())
		cur := e.Snapshot().State.Inertia
		assert.LessOrEqual(t, cur, prev+1e-9)
		prev = cur
	}
}

// #endregion property-tests

// #region lifecycle-tests

func TestEngine_StepDispatchCyclesPhases(t *testing.T) {
	e, err := NewEngine(2, newRand(3))
	require.NoError(t, err)
	e.SetPoints(line())

	want := []Phase{PhaseAssign, PhaseUpdate, PhaseAssign, PhaseUpdate, PhaseAssign}
	for i, phase := range want {
		require.NoError(t, e.Step())
		assert.Equal(t, phase, e.Phase(), "step %d", i)
	}
	assert.Equal(t, 2, e.Snapshot().State.Iteration)
}

func TestEngine_InitializeValidatesK(t *testing.T) {
	e, err := NewEngine(2, newRand(1))
	require.NoError(t, err)
	e.SetPoints(line())

	assert.ErrorIs(t, e.Initialize(0), step.ErrInvalidParameter)
	assert.ErrorIs(t, e.Initialize(4), step.ErrInvalidParameter)
	assert.Equal(t, PhaseUninitialized, e.Phase(), "rejected k must not mutate state")

	assert.ErrorIs(t, e.SetK(7), step.ErrInvalidParameter)
	assert.Equal(t, 2, e.K())

	_, err = NewEngine(0, newRand(1))
	assert.ErrorIs(t, err, step.ErrInvalidParameter)
}

func TestEngine_InitializeSamplesFromPoints(t *testing.T) {
	pts := line()
	e, err := NewEngine(3, newRand(5))
	require.NoError(t, err)
	e.SetPoints(pts)
	require.NoError(t, e.Initialize(3))

	snap := e.Snapshot()
	require.Len(t, snap.State.Centroids, 3)
	for _, c := range snap.State.Centroids {
		found := false
		for _, p := range pts {
			if p.X == c.X && p.Y == c.Y {
				found = true
			}
		}
		assert.True(t, found, "centroid %+v is not a sampled point", c)
	}
	for _, a := range snap.State.Assignment {
		assert.Equal(t, -1, a)
	}
}

func TestEngine_SameSeedSameRun(t *testing.T) {
	pts := blobs(t, 8)
	run := func() Snapshot {
		e, err := NewEngine(3, newRand(77))
		require.NoError(t, err)
		e.SetPoints(pts)
		for i := 0; i < 7; i++ {
			require.NoError(t, e.Step())
		}
		return e.Snapshot()
	}
	assert.Equal(t, run(), run())
}

func TestEngine_OutOfPhase(t *testing.T) {
	e, err := NewEngine(2, newRand(1))
	require.NoError(t, err)
	e.SetPoints(line())

	assert.ErrorIs(t, e.StepAssign(), ErrOutOfPhase)
	require.NoError(t, e.Initialize(2))
	assert.ErrorIs(t, e.StepUpdate(), ErrOutOfPhase)
}

func TestEngine_EmptyPointsNeutral(t *testing.T) {
	e, err := NewEngine(3, newRand(1))
	require.NoError(t, err)

	require.NoError(t, e.Step())
	require.NoError(t, e.Step())
	snap := e.Snapshot()
	assert.Equal(t, PhaseUninitialized, snap.State.Phase)
	assert.Empty(t, snap.State.Centroids)
	assert.Zero(t, snap.State.Inertia)
	assert.Empty(t, snap.Sizes)
}

func TestEngine_SetPointsResets(t *testing.T) {
	e, err := NewEngine(2, newRand(1))
	require.NoError(t, err)
	e.SetPoints(line())
	require.NoError(t, e.Step())
	require.NoError(t, e.Step())

	e.SetPoints(append(line(), points.Point{X: 30, Y: 0}))
	snap := e.Snapshot()
	assert.Equal(t, PhaseUninitialized, snap.State.Phase)
	assert.Len(t, snap.Points, 4)
	assert.Zero(t, snap.State.Iteration)
}

func TestEngine_SnapshotIsImmutable(t *testing.T) {
	e, err := NewEngine(2, newRand(1))
	require.NoError(t, err)
	e.SetPoints(line())
	require.NoError(t, e.Seed([]points.Point{{X: 0, Y: 0}, {X: 20, Y: 0}}))
	require.NoError(t, e.StepAssign())

	snap := e.Snapshot()
	snap.State.Assignment[0] = 1
	snap.State.Centroids[0].X = -1

	fresh := e.Snapshot()
	assert.Equal(t, 0, fresh.State.Assignment[0])
	assert.Equal(t, 0.0, fresh.State.Centroids[0].X)
}

func TestEngine_ConvergedFlag(t *testing.T) {
	e, err := NewEngine(2, newRand(1))
	require.NoError(t, err)
	e.SetPoints(line())
	require.NoError(t, e.Seed([]points.Point{{X: 0, Y: 0}, {X: 20, Y: 0}}))

	require.NoError(t, e.StepAssign())
	assert.False(t, e.Snapshot().Converged)
	require.NoError(t, e.StepUpdate())
	require.NoError(t, e.StepAssign())
	assert.True(t, e.Snapshot().Converged)
	// Still steppable after convergence.
	require.NoError(t, e.Step())
}

func TestPhase_TextRoundTrip(t *testing.T) {
	var p Phase
	require.NoError(t, p.UnmarshalText([]byte("update")))
	assert.Equal(t, PhaseUpdate, p)
	assert.Error(t, p.UnmarshalText([]byte("bogus")))
}

// #endregion lifecycle-tests
