package logging

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1) // each :memory: connection is its own database
	_, err = db.Exec(`CREATE TABLE step_log (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL,
		action_id   TEXT,
		version_id  TEXT,
		engine      TEXT NOT NULL,
		action      TEXT NOT NULL,
		params_json TEXT,
		decision    TEXT NOT NULL,
		reason      TEXT,
		created_at  TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-step-tests
func TestLogStep_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := StepEntry{
		SessionID:  "s1",
		ActionID:   "a1",
		VersionID:  "v1",
		Engine:     "kmeans",
		Action:     "step",
		ParamsJSON: `{"op":"step","engine":"kmeans"}`,
		Decision:   "commit",
		Reason:     "assign -> update",
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := LogStep(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM step_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var versionID, decision string
	db.QueryRow("SELECT version_id, decision FROM step_log").Scan(&versionID, &decision)
	if versionID != "v1" {
		t.Errorf("expected version_id 'v1', got %q", versionID)
	}
	if decision != "commit" {
		t.Errorf("expected decision 'commit', got %q", decision)
	}
}

func TestLogStep_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	if err := LogStep(db, StepEntry{SessionID: "s1", Engine: "tree", Action: "reset", Decision: "reset"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM step_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogStep_EmptyOptionalFieldsStoredAsNull(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	if err := LogStep(db, StepEntry{SessionID: "s1", Engine: "regression", Action: "set_learning_rate", Decision: "reject"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var actionID, versionID, params, reason sql.NullString
	db.QueryRow("SELECT action_id, version_id, params_json, reason FROM step_log").Scan(&actionID, &versionID, &params, &reason)
	if actionID.Valid || versionID.Valid || params.Valid || reason.Valid {
		t.Errorf("expected NULLs, got %v %v %v %v", actionID, versionID, params, reason)
	}
}

func TestLogStep_MissingTable(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := LogStep(db, StepEntry{SessionID: "s1", Engine: "tree", Action: "step", Decision: "commit"}); err == nil {
		t.Fatal("expected error for missing table")
	}
}

func TestListSteps_OrderAndFilter(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	for i, action := range []string{"add_point", "step", "step"} {
		err := LogStep(db, StepEntry{SessionID: "s1", VersionID: "v" + string(rune('a'+i)), Engine: "kmeans", Action: action, Decision: "commit"})
		if err != nil {
			t.Fatalf("log step: %v", err)
		}
	}
	LogStep(db, StepEntry{SessionID: "other", Engine: "tree", Action: "step", Decision: "commit"})

	got, err := ListSteps(db, "s1")
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Action != "add_point" || got[2].VersionID != "vc" {
		t.Errorf("unexpected order: %+v", got)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("expected created_at to be parsed")
	}
}
// #endregion log-step-tests

// #region logger-tests
func TestNew_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Format: "json", Service: "explorer", Output: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Debug("stepped", "engine", "tree")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if rec["service"] != "explorer" || rec["engine"] != "tree" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Output: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record missing")
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
// #endregion logger-tests

func TestLogStep_InTransactionRollsBack(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := LogStep(tx, StepEntry{SessionID: "s1", Engine: "kmeans", Action: "step", Decision: "commit"}); err != nil {
		t.Fatalf("LogStep in tx: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	entries, err := ListSteps(db, "s1")
	if err != nil {
		t.Fatalf("ListSteps: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected rolled back row to be gone, got %d", len(entries))
	}
}
