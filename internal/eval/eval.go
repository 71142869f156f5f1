package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/algo-explorer/internal/kmeans"
	"github.com/danielpatrickdp/algo-explorer/internal/points"
	"github.com/danielpatrickdp/algo-explorer/internal/regression"
	"github.com/danielpatrickdp/algo-explorer/internal/session"
	"github.com/danielpatrickdp/algo-explorer/internal/tree"
	"gonum.org/v1/gonum/stat"
)

// #region eval-harness
// EvalHarness recomputes derived metrics from a snapshot and compares them
// with what the engine reported.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks every invariant that applies to the snapshot's engine and
// phase. Checks that do not apply yet (e.g. an unbuilt tree) are skipped.
func (h *EvalHarness) Run(snap session.Snapshot) EvalResult {
	c := &checker{tol: h.config.Tolerance}
	switch {
	case snap.KMeans != nil:
		h.checkKMeans(c, snap.KMeans)
	case snap.Tree != nil:
		h.checkTree(c, snap.Tree)
	case snap.Regression != nil:
		h.checkRegression(c, snap.Regression)
	default:
		c.fail("engine_payload", 0, fmt.Sprintf("snapshot for %q has no engine payload", snap.Engine))
	}
	return c.result()
}

// #endregion eval-harness

// #region kmeans-checks
func (h *EvalHarness) checkKMeans(c *checker, s *kmeans.Snapshot) {
	st := s.State
	if st.Phase == kmeans.PhaseUninitialized {
		return
	}
	c.check("assignment_length", float64(len(st.Assignment)), len(st.Assignment) == len(s.Points),
		fmt.Sprintf("assignment has %d entries for %d points", len(st.Assignment), len(s.Points)))

	want := kmeans.Inertia(s.Points, st.Centroids, st.Assignment)
	c.check("inertia", st.Inertia, c.near(st.Inertia, want),
		fmt.Sprintf("inertia %.6f, recomputed %.6f", st.Inertia, want))

	// Right after an update the centroids are the exact means of the
	// assignment that produced them.
	if st.Phase != kmeans.PhaseAssign || st.Iteration == 0 {
		return
	}
	worst := 0.0
	for j, centroid := range st.Centroids {
		var xs, ys []float64
		for i, a := range st.Assignment {
			if a == j {
				xs = append(xs, s.Points[i].X)
				ys = append(ys, s.Points[i].Y)
			}
		}
		if len(xs) == 0 {
			continue
		}
		mean := points.Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
		worst = math.Max(worst, math.Sqrt(centroid.SquaredDistance(mean)))
	}
	c.check("centroid_mean_error", worst, c.near(worst, 0),
		fmt.Sprintf("centroid off its cluster mean by %.6f", worst))
}

// #endregion kmeans-checks

// #region tree-checks
func (h *EvalHarness) checkTree(c *checker, s *tree.Snapshot) {
	if !s.Built || s.Root == nil {
		return
	}
	labelled := 0
	for _, p := range s.Points {
		if p.Labelled() {
			labelled++
		}
	}
	total := 0
	for _, leaf := range tree.Leaves(s.Root) {
		total += leaf.Count
	}
	c.check("leaf_count_total", float64(total), total == labelled,
		fmt.Sprintf("leaf counts sum to %d, %d labelled points", total, labelled))

	depth := tree.Depth(s.Root)
	c.check("depth", float64(depth), depth <= s.MaxDepth,
		fmt.Sprintf("depth %d exceeds max depth %d", depth, s.MaxDepth))

	minGain := math.Inf(1)
	tree.Walk(s.Root, func(n tree.Node) bool {
		if sp, ok := n.(*tree.Split); ok {
			minGain = math.Min(minGain, sp.Gain)
		}
		return true
	})
	if !math.IsInf(minGain, 1) {
		c.check("min_split_gain", minGain, minGain >= tree.MinGain,
			fmt.Sprintf("split with gain %.6f below %.2f", minGain, tree.MinGain))
	}

	c.check("accuracy", s.Accuracy, s.Accuracy >= 0 && s.Accuracy <= 1,
		fmt.Sprintf("accuracy %.4f outside [0, 1]", s.Accuracy))
}

// #endregion tree-checks

// #region regression-checks
func (h *EvalHarness) checkRegression(c *checker, s *regression.Snapshot) {
	st := s.State
	if !st.Initialized {
		return
	}
	want := regression.Loss(s.Points, st.Weight, st.Bias, s.OriginOffset)
	c.check("loss", s.Loss, c.near(s.Loss, want),
		fmt.Sprintf("loss %.6f, recomputed MSE %.6f", s.Loss, want))

	n := len(st.LossHistory)
	c.check("loss_history_length", float64(n), n <= h.config.HistoryLimit,
		fmt.Sprintf("loss history has %d entries, limit %d", n, h.config.HistoryLimit))
	if n > 0 {
		last := st.LossHistory[n-1]
		c.check("loss_history_last", last, c.near(last, s.Loss),
			fmt.Sprintf("last recorded loss %.6f, current %.6f", last, s.Loss))
	}
}

// #endregion regression-checks

// #region helpers
type checker struct {
	tol     float64
	metrics []EvalMetric
	reasons []string
}

func (c *checker) check(name string, value float64, pass bool, why string) {
	c.metrics = append(c.metrics, EvalMetric{Name: name, Value: value, Pass: pass})
	if !pass {
		c.reasons = append(c.reasons, why)
	}
}

func (c *checker) fail(name string, value float64, why string) {
	c.check(name, value, false, why)
}

// near compares with a tolerance relative to the magnitude of want.
func (c *checker) near(got, want float64) bool {
	return math.Abs(got-want) <= c.tol*math.Max(1, math.Abs(want))
}

func (c *checker) result() EvalResult {
	reason := "all checks passed"
	if len(c.reasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", c.reasons[0])
	} else if len(c.reasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(c.reasons), c.reasons[0])
	}
	return EvalResult{
		Passed:  len(c.reasons) == 0,
		Metrics: c.metrics,
		Reason:  reason,
	}
}

// #endregion helpers
