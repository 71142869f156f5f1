package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/algo-explorer/internal/journal"
	"github.com/danielpatrickdp/algo-explorer/internal/replay"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to a journal database (DB mode)")
	sessionID := flag.String("session", "", "session to replay in DB mode (default: most recent)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON or YAML (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/algo-explorer.db [--session id]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, *sessionID)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region modes

func runDBMode(dbPath, sessionID string) int {
	store, err := journal.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	if sessionID == "" {
		ids, err := store.Sessions()
		if err != nil {
			fmt.Fprintf(os.Stderr, "list sessions: %v\n", err)
			return 2
		}
		if len(ids) == 0 {
			fmt.Fprintln(os.Stderr, "no sessions found in step_log")
			return 2
		}
		sessionID = ids[0]
	}

	f, err := replay.FromJournal(store, sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract session: %v\n", err)
		return 2
	}
	return run(f)
}

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	return run(f)
}

func run(f *replay.Fixture) int {
	sess, err := f.NewSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start session: %v\n", err)
		return 2
	}
	results := replay.Replay(sess, f.Actions, f.Config.ToEvalConfig())
	return printComparison(results, f.ExpectedResults)
}

// #endregion modes

// #region output

// printComparison outputs a comparison table and returns the exit code.
func printComparison(results []replay.ReplayResult, expected []replay.FixtureExpectedResult) int {
	want := make(map[string]string, len(expected))
	for _, e := range expected {
		want[e.ID] = e.Action
	}

	fmt.Printf("%-24s| %-18s| %-10s| %-10s| %s\n", "Action", "Op", "Expected", "Replayed", "Match")
	fmt.Printf("%-24s+%-19s+%-11s+%-11s+%s\n",
		"------------------------", "-------------------", "-----------", "-----------", "------")

	for _, r := range results {
		exp, ok := want[r.ID]
		match := "OK"
		switch {
		case !ok || exp == "":
			exp, match = "-", "-"
		case exp != r.Action:
			match = "DIFF"
		}
		fmt.Printf("%-24s| %-18s| %-10s| %-10s| %s\n", r.ID, r.Op, exp, r.Action, match)
	}

	mismatches := replay.Compare(results, expected)
	for _, m := range mismatches {
		fmt.Printf("  %s\n", m)
	}

	s := replay.Summarize(results)
	fmt.Printf("\nSummary: %d actions, %d commit, %d reset, %d reject, %d eval failures, %d mismatches\n",
		s.TotalActions, s.Commits, s.Resets, s.Rejects, s.EvalFailures, len(mismatches))

	if len(mismatches) > 0 || s.EvalFailures > 0 {
		return 1
	}
	return 0
}

// #endregion output
