package replay

import (
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/algo-explorer/internal/journal"
	"github.com/danielpatrickdp/algo-explorer/internal/kmeans"
	"github.com/danielpatrickdp/algo-explorer/internal/logging"
	"github.com/danielpatrickdp/algo-explorer/internal/session"
)

// #region from-journal

// FromJournal rebuilds a journaled session as a fixture. The fixture starts
// from the last point cloud the session generated (or its start) so that it
// replays without the session's random source: random initialisation steps
// become explicit seed_centroids / init_regression actions.
func FromJournal(store *journal.Store, sessionID string) (*Fixture, error) {
	steps, err := logging.ListSteps(store.DB(), sessionID)
	if err != nil {
		return nil, err
	}
	groups := groupByAction(steps)
	if len(groups) == 0 {
		return nil, fmt.Errorf("session %s has no step log", sessionID)
	}

	start := 0
	for i, g := range groups {
		if g[0].Action == string(session.OpRegenerate) && g[0].Decision != "reject" {
			start = i
		}
	}

	f := &Fixture{Description: fmt.Sprintf("exported from session %s", sessionID)}
	if err := fillStart(store, f, groups[start]); err != nil {
		return nil, err
	}

	for i, g := range groups[start+1:] {
		action, expected, err := toAction(store, fmt.Sprintf("%03d-%s", i+1, g[0].Action), g)
		if err != nil {
			return nil, err
		}
		f.Actions = append(f.Actions, action)
		f.ExpectedResults = append(f.ExpectedResults, expected)
	}
	return f, nil
}

func groupByAction(steps []logging.StepEntry) [][]logging.StepEntry {
	var out [][]logging.StepEntry
	for _, s := range steps {
		n := len(out)
		if n > 0 && s.ActionID != "" && out[n-1][0].ActionID == s.ActionID {
			out[n-1] = append(out[n-1], s)
			continue
		}
		out = append(out, []logging.StepEntry{s})
	}
	return out
}

// fillStart takes points and hyper-parameters from the snapshots of the
// starting action.
func fillStart(store *journal.Store, f *Fixture, rows []logging.StepEntry) error {
	for _, row := range rows {
		if row.VersionID == "" {
			continue
		}
		e, err := store.GetSnapshot(row.VersionID)
		if err != nil {
			return err
		}
		snap := e.Snapshot
		if f.StartPoints == nil {
			f.StartPoints = &FixturePoints{Palette: snap.Palette, Points: snap.Points()}
		}
		switch {
		case snap.KMeans != nil:
			f.Config.K = snap.KMeans.K
		case snap.Tree != nil:
			f.Config.MaxDepth = snap.Tree.MaxDepth
			grid := snap.Tree.Grid
			f.Config.Grid = &grid
		case snap.Regression != nil:
			f.Config.LearningRate = snap.Regression.LearningRate
			offset := snap.Regression.OriginOffset
			f.Config.OriginOffset = &offset
		}
	}
	if f.StartPoints == nil {
		return fmt.Errorf("no start snapshot for action %s", rows[0].ActionID)
	}
	return nil
}

func toAction(store *journal.Store, id string, rows []logging.StepEntry) (FixtureAction, FixtureExpectedResult, error) {
	first, last := rows[0], rows[len(rows)-1]
	var m session.Mutation
	if first.ParamsJSON != "" {
		if err := json.Unmarshal([]byte(first.ParamsJSON), &m); err != nil {
			return FixtureAction{}, FixtureExpectedResult{}, fmt.Errorf("params of %s: %w", id, err)
		}
	}
	expected := FixtureExpectedResult{ID: id, Action: first.Decision}
	if first.Decision == "reject" || last.VersionID == "" {
		return FixtureAction{ID: id, Mutation: m}, expected, nil
	}

	e, err := store.GetSnapshot(last.VersionID)
	if err != nil {
		return FixtureAction{}, FixtureExpectedResult{}, err
	}
	snap := e.Snapshot
	expected.Metrics = snap.Metrics

	if m.Op == session.OpStep {
		m = pinRandomStep(m, snap)
	}
	return FixtureAction{ID: id, Mutation: m}, expected, nil
}

// pinRandomStep rewrites a step that drew random numbers into the explicit
// mutation that reproduces its outcome.
func pinRandomStep(m session.Mutation, snap session.Snapshot) session.Mutation {
	switch {
	case snap.KMeans != nil:
		st := snap.KMeans.State
		if st.Phase != kmeans.PhaseAssign || st.Iteration != 0 {
			return m
		}
		for _, a := range st.Assignment {
			if a >= 0 {
				return m
			}
		}
		return session.Mutation{Op: session.OpSeedCentroids, Centroids: st.Centroids}
	case snap.Regression != nil:
		st := snap.Regression.State
		if st.Initialized && st.Iteration == 0 && len(st.LossHistory) == 0 {
			return session.Mutation{Op: session.OpInitRegression, Weight: st.Weight, Bias: st.Bias}
		}
	}
	return m
}

// #endregion from-journal
