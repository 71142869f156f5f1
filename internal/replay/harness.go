package replay

import (
	"fmt"
	"math"
	"sort"

	"github.com/danielpatrickdp/algo-explorer/internal/eval"
	"github.com/danielpatrickdp/algo-explorer/internal/session"
)

// #region types

// ReplayResult captures the outcome of one fixture action.
type ReplayResult struct {
	ID     string
	Op     session.Op
	Engine session.Engine
	Action string // "commit" | "reset" | "reject" | "eval_fail"
	Reason string

	// Steps applied before the action finished or failed.
	Applied int

	// Eval of the last snapshot (nil for rejects).
	EvalResult *eval.EvalResult

	// Last snapshot produced by the action (nil for rejects).
	Final *session.Snapshot
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalActions int
	Commits      int
	Resets       int
	Rejects      int
	EvalFailures int
	Final        map[session.Engine]session.Snapshot
}

// Mismatch is a difference between an expected and an actual result.
type Mismatch struct {
	ID    string
	Field string
	Want  string
	Got   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s want %s, got %s", m.ID, m.Field, m.Want, m.Got)
}

// #endregion types

// #region replay

// Replay applies the actions in order, evaluating every produced snapshot.
// A rejected action leaves the session as it was and replay continues.
func Replay(sess *session.Session, actions []FixtureAction, config eval.EvalConfig) []ReplayResult {
	harness := eval.NewEvalHarness(config)
	results := make([]ReplayResult, 0, len(actions))

	for _, a := range actions {
		res := ReplayResult{ID: a.ID, Op: a.Op, Engine: a.Engine}
		repeat := max(a.Repeat, 1)

	steps:
		for i := 0; i < repeat; i++ {
			snaps, err := sess.Apply(a.Mutation)
			if err != nil {
				res.Action = "reject"
				res.Reason = err.Error()
				break
			}
			res.Applied++
			for j := range snaps {
				r := harness.Run(snaps[j])
				res.EvalResult = &r
				res.Final = &snaps[j]
				if !r.Passed {
					res.Action = "eval_fail"
					res.Reason = r.Reason
					break steps
				}
			}
		}
		if res.Action == "" {
			res.Action = "commit"
			if a.Op.Resets() {
				res.Action = "reset"
			}
			if res.EvalResult != nil {
				res.Reason = res.EvalResult.Reason
			}
		}
		results = append(results, res)
	}
	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{
		TotalActions: len(results),
		Final:        make(map[session.Engine]session.Snapshot),
	}
	for _, r := range results {
		switch r.Action {
		case "commit":
			s.Commits++
		case "reset":
			s.Resets++
		case "reject":
			s.Rejects++
		case "eval_fail":
			s.EvalFailures++
		}
		if r.Final != nil {
			s.Final[r.Final.Engine] = *r.Final
		}
	}
	return s
}

// Compare checks results against expectations. Expected metrics are read
// from the action's last snapshot and compared with a relative tolerance.
func Compare(results []ReplayResult, expected []FixtureExpectedResult) []Mismatch {
	byID := make(map[string]ReplayResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}

	var out []Mismatch
	for _, exp := range expected {
		r, ok := byID[exp.ID]
		if !ok {
			out = append(out, Mismatch{ID: exp.ID, Field: "action", Want: exp.Action, Got: "missing"})
			continue
		}
		if exp.Action != "" && r.Action != exp.Action {
			out = append(out, Mismatch{ID: exp.ID, Field: "action", Want: exp.Action, Got: r.Action})
		}
		tol := exp.Tolerance
		if tol == 0 {
			tol = 1e-6
		}
		names := make([]string, 0, len(exp.Metrics))
		for name := range exp.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			want := exp.Metrics[name]
			if r.Final == nil {
				out = append(out, Mismatch{ID: exp.ID, Field: name, Want: fmt.Sprint(want), Got: "no snapshot"})
				continue
			}
			got, ok := r.Final.Metrics[name]
			if !ok {
				out = append(out, Mismatch{ID: exp.ID, Field: name, Want: fmt.Sprint(want), Got: "absent"})
				continue
			}
			if math.Abs(got-want) > tol*math.Max(1, math.Abs(want)) {
				out = append(out, Mismatch{ID: exp.ID, Field: name, Want: fmt.Sprint(want), Got: fmt.Sprint(got)})
			}
		}
	}
	return out
}

// #endregion replay
