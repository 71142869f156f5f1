package eval

// #region eval-config
// EvalConfig holds tolerances for snapshot invariant checks.
type EvalConfig struct {
	Tolerance    float64 // relative tolerance for recomputed metrics
	HistoryLimit int     // maximum loss history length
}

// DefaultEvalConfig returns the tolerances used by replay.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		Tolerance:    1e-9,
		HistoryLimit: 50,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single invariant check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of a snapshot check.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
