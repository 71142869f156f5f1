package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/danielpatrickdp/algo-explorer/internal/journal"
	"github.com/danielpatrickdp/algo-explorer/internal/logging"
	"github.com/danielpatrickdp/algo-explorer/internal/session"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

// #region main

func main() {
	dbPath := flag.String("db", "", "path to a journal database")
	sessionID := flag.String("session", "", "restrict to one session")
	last := flag.Int("last", 20, "show N most recent snapshots")
	version := flag.String("version", "", "show single snapshot detail")
	metric := flag.String("metric", "", "show only this metric in detail mode")
	steps := flag.Bool("steps", false, "list raw step_log rows, rejects included (requires --session)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" || (*steps && *sessionID == "") {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/db [--session id] [--last N] [--version id] [--metric name] [--steps] [--json]")
		os.Exit(2)
	}

	store, err := journal.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *version != "":
		err = runDetailMode(store, *version, *metric, *jsonOut)
	case *steps:
		err = runStepsMode(store, *sessionID, *jsonOut)
	default:
		err = runListMode(store, *sessionID, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	VersionID string         `json:"version_id"`
	SessionID string         `json:"session_id"`
	Engine    session.Engine `json:"engine"`
	Revision  uint64         `json:"revision"`
	Action    string         `json:"action"`
	Decision  string         `json:"decision"`
	Reason    string         `json:"reason,omitempty"`
	Key       string         `json:"key_metric"`
	Value     float64        `json:"value"`
	CreatedAt string         `json:"created_at"`
}

func runListMode(store *journal.Store, sessionID string, last int, jsonOut bool) error {
	entries, err := store.ListWithSteps(sessionID, last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no snapshots found")
		return nil
	}

	// Store returns DESC, reverse for chronological.
	rows := make([]listRow, len(entries))
	for i, e := range entries {
		key := keyMetric(e.Engine)
		rows[len(entries)-1-i] = listRow{
			VersionID: e.VersionID,
			SessionID: e.SessionID,
			Engine:    e.Engine,
			Revision:  e.Revision,
			Action:    e.Action,
			Decision:  e.Decision,
			Reason:    e.Reason,
			Key:       key,
			Value:     e.Snapshot.Metrics[key],
			CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-10s  %-10s  %4s  %-18s  %-8s  %-10s  %14s  %s",
		"Version", "Engine", "Rev", "Action", "Decision", "Metric", "Value", "Time")))
	for _, r := range rows {
		fmt.Printf("%-10s  %-10s  %4d  %-18s  %-8s  %-10s  %14.4f  %s\n",
			shortID(r.VersionID), r.Engine, r.Revision, r.Action, r.Decision, r.Key, r.Value, r.CreatedAt)
	}
	return nil
}

// keyMetric is the metric summarising an engine's progress.
func keyMetric(e session.Engine) string {
	switch e {
	case session.EngineKMeans:
		return "inertia"
	case session.EngineTree:
		return "accuracy"
	case session.EngineRegression:
		return "loss"
	}
	return ""
}

// #endregion list-mode

// #region steps-mode

func runStepsMode(store *journal.Store, sessionID string, jsonOut bool) error {
	entries, err := logging.ListSteps(store.DB(), sessionID)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(entries)
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-10s  %-10s  %-18s  %-8s  %-10s  %s",
		"Action ID", "Engine", "Action", "Decision", "Version", "Reason")))
	for _, e := range entries {
		version := "-"
		if e.VersionID != "" {
			version = shortID(e.VersionID)
		}
		fmt.Printf("%-10s  %-10s  %-18s  %-8s  %-10s  %s\n",
			shortID(e.ActionID), e.Engine, e.Action, e.Decision, version, e.Reason)
	}
	return nil
}

// #endregion steps-mode

// #region detail-mode

func runDetailMode(store *journal.Store, versionID, metric string, jsonOut bool) error {
	e, err := store.GetSnapshot(versionID)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(e.Snapshot)
	}

	fmt.Println(headerStyle.Render("Snapshot " + e.VersionID))
	fmt.Printf("Session:     %s\n", e.SessionID)
	fmt.Printf("Parent:      %s\n", e.ParentID)
	fmt.Printf("Engine:      %s\n", e.Engine)
	fmt.Printf("Revision:    %d\n", e.Revision)
	fmt.Printf("Points:      %d (hash %s)\n", len(e.Snapshot.Points()), e.PointsHash)
	fmt.Printf("Created:     %s\n", e.CreatedAt.Format("2006-01-02T15:04:05Z"))

	fmt.Printf("\nMetrics:\n")
	printMetrics(e.Snapshot.Metrics, metric)
	return nil
}

// #endregion detail-mode

// #region output

func printMetrics(m map[string]float64, filter string) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if filter != "" && !strings.EqualFold(name, filter) {
			continue
		}
		fmt.Printf("  %-14s %.6g\n", name, m[name])
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
