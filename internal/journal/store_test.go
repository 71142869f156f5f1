package journal

import (
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/algo-explorer/internal/logging"
	"github.com/danielpatrickdp/algo-explorer/internal/points"
	"github.com/danielpatrickdp/algo-explorer/internal/session"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func journaledSession(t *testing.T, s *Store) *session.Session {
	t.Helper()
	set, err := points.NewSet(2,
		points.Point{X: 0, Y: 0, Label: 0},
		points.Point{X: 10, Y: 0, Label: 0},
		points.Point{X: 300, Y: 10, Label: 1},
	)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	cfg := session.DefaultConfig()
	cfg.K = 2
	sess, err := session.New(cfg, rand.New(rand.NewPCG(7, 7)), session.WithPoints(set), session.WithRecorder(s))
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return sess
}

func TestRecordAndLatest(t *testing.T) {
	s := tempDB(t)
	sess := journaledSession(t, s)

	snap, err := sess.Step(session.EngineKMeans)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}

	got, err := s.Latest(sess.ID(), session.EngineKMeans)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.VersionID != snap.VersionID {
		t.Fatalf("expected %s, got %s", snap.VersionID, got.VersionID)
	}
	if got.ParentID != snap.ParentID || got.ParentID == "" {
		t.Fatalf("expected parent %s, got %q", snap.ParentID, got.ParentID)
	}
	if got.PointsHash != snap.Fingerprint.String() {
		t.Errorf("points hash %s != %s", got.PointsHash, snap.Fingerprint)
	}
	if got.Snapshot.KMeans == nil || len(got.Snapshot.KMeans.State.Centroids) != 2 {
		t.Fatalf("payload not restored: %+v", got.Snapshot)
	}
	if got.MetricsJSON == "" {
		t.Error("expected metrics json")
	}
}

func TestGetSnapshot_RoundTripsTree(t *testing.T) {
	s := tempDB(t)
	sess := journaledSession(t, s)

	snap, err := sess.Step(session.EngineTree)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	got, err := s.GetSnapshot(snap.VersionID)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if got.Snapshot.Tree == nil || !got.Snapshot.Tree.Built {
		t.Fatalf("expected built tree, got %+v", got.Snapshot.Tree)
	}
	if got.Snapshot.Tree.Leaves != snap.Tree.Leaves {
		t.Errorf("leaves %d != %d", got.Snapshot.Tree.Leaves, snap.Tree.Leaves)
	}
	if got.Snapshot.Fingerprint != snap.Fingerprint {
		t.Errorf("fingerprint mismatch")
	}
}

func TestGetSnapshot_Missing(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetSnapshot("nope"); err == nil {
		t.Fatal("expected error for missing version")
	}
}

func TestListSnapshots(t *testing.T) {
	s := tempDB(t)
	sess := journaledSession(t, s)
	for i := 0; i < 3; i++ {
		if _, err := sess.Step(session.EngineRegression); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}

	// 3 start snapshots + 3 steps
	all, err := s.ListSnapshots(sess.ID(), 100)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("expected 6 snapshots, got %d", len(all))
	}

	limited, err := s.ListSnapshots("", 2)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(limited))
	}

	other, err := s.ListSnapshots("someone-else", 100)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no snapshots, got %d", len(other))
	}
}

func TestRejectWritesOnlyStepLog(t *testing.T) {
	s := tempDB(t)
	sess := journaledSession(t, s)

	before, _ := s.ListSnapshots(sess.ID(), 100)
	if err := sess.SetK(0); err == nil {
		t.Fatal("expected SetK(0) to fail")
	}
	after, _ := s.ListSnapshots(sess.ID(), 100)
	if len(after) != len(before) {
		t.Fatalf("reject added a snapshot: %d -> %d", len(before), len(after))
	}

	steps, err := logging.ListSteps(s.DB(), sess.ID())
	if err != nil {
		t.Fatalf("ListSteps: %v", err)
	}
	last := steps[len(steps)-1]
	if last.Decision != "reject" || last.Action != "set_k" {
		t.Errorf("unexpected last step: %+v", last)
	}
}

func TestListWithSteps(t *testing.T) {
	s := tempDB(t)
	sess := journaledSession(t, s)
	if err := sess.AddPoint(points.Point{X: 50, Y: 50, Label: 1}); err != nil {
		t.Fatalf("AddPoint: %v", err)
	}
	if _, err := sess.Step(session.EngineKMeans); err != nil {
		t.Fatalf("Step: %v", err)
	}

	rows, err := s.ListWithSteps(sess.ID(), 100)
	if err != nil {
		t.Fatalf("ListWithSteps: %v", err)
	}
	// 3 start + 3 add_point resets + 1 step
	if len(rows) != 7 {
		t.Fatalf("expected 7 rows, got %d", len(rows))
	}
	if rows[0].Action != "step" || rows[0].Decision != "commit" {
		t.Errorf("expected newest row to be the step, got %+v", rows[0])
	}
	if rows[0].ParamsJSON == "" {
		t.Error("expected params json")
	}
}

func TestSessions(t *testing.T) {
	s := tempDB(t)
	a := journaledSession(t, s)
	b := journaledSession(t, s)

	ids, err := s.Sessions()
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 sessions, got %v", ids)
	}
	if ids[0] != b.ID() || ids[1] != a.ID() {
		t.Errorf("unexpected order %v", ids)
	}
}

func TestActionIDGroupsRows(t *testing.T) {
	s := tempDB(t)
	sess := journaledSession(t, s)
	if err := sess.AddPoint(points.Point{X: 1, Y: 1, Label: 0}); err != nil {
		t.Fatalf("AddPoint: %v", err)
	}
	if _, err := sess.Step(session.EngineTree); err != nil {
		t.Fatalf("Step: %v", err)
	}

	steps, err := logging.ListSteps(s.DB(), sess.ID())
	if err != nil {
		t.Fatalf("ListSteps: %v", err)
	}
	// 3 start rows, 3 add_point rows, 1 step
	if len(steps) != 7 {
		t.Fatalf("expected 7 rows, got %d", len(steps))
	}
	add := steps[3:6]
	for _, row := range add {
		if row.ActionID == "" || row.ActionID != add[0].ActionID {
			t.Fatalf("add_point rows do not share an action id: %+v", add)
		}
	}
	if add[0].Engine != "kmeans" || add[2].Engine != "regression" {
		t.Errorf("unexpected engines %s..%s", add[0].Engine, add[2].Engine)
	}
	if steps[6].ActionID == add[0].ActionID {
		t.Error("step reused the add_point action id")
	}
}

func TestRecord_StepLogFailureLeavesNoSnapshot(t *testing.T) {
	s := tempDB(t)
	if _, err := s.DB().Exec(`DROP TABLE step_log`); err != nil {
		t.Fatalf("drop step_log: %v", err)
	}

	sess := journaledSession(t, s)
	snap := sess.Snapshot(session.EngineKMeans)
	err := s.Record(snap, session.Action{ID: "a1", Mutation: session.Mutation{Op: session.OpStep}, Decision: "commit"})
	if err == nil {
		t.Fatal("expected error without step_log table")
	}

	for _, table := range []string{"snapshots", "active_snapshot"} {
		var n int
		if err := s.DB().QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Fatalf("expected no rows in %s, got %d", table, n)
		}
	}
}
