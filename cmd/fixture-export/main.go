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
	dbPath := flag.String("db", "", "path to a journal database")
	sessionID := flag.String("session", "", "session to export (default: most recent)")
	outPath := flag.String("out", "", "output fixture path (.json, .yaml or .yml)")
	desc := flag.String("description", "", "fixture description (default: derived from the session)")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--session id]")
		os.Exit(2)
	}

	if err := run(*dbPath, *sessionID, *outPath, *desc); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(dbPath, sessionID, outPath, desc string) error {
	store, err := journal.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	if sessionID == "" {
		ids, err := store.Sessions()
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(ids) == 0 {
			return fmt.Errorf("no sessions found in %s", dbPath)
		}
		sessionID = ids[0]
	}

	f, err := replay.FromJournal(store, sessionID)
	if err != nil {
		return fmt.Errorf("extract session %s: %w", sessionID, err)
	}
	if desc != "" {
		f.Description = desc
	}

	if err := replay.SaveFixture(outPath, f); err != nil {
		return err
	}

	fmt.Printf("Exported %d actions from session %s to %s\n", len(f.Actions), sessionID, outPath)
	for _, a := range f.Actions {
		fmt.Printf("  %s: %s %s\n", a.ID, a.Op, a.Engine)
	}
	return nil
}

// #endregion export
