package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/algo-explorer/internal/logging"
	"github.com/danielpatrickdp/algo-explorer/internal/session"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	version_id    TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	parent_id     TEXT,
	engine        TEXT NOT NULL,
	revision      INTEGER NOT NULL,
	points_hash   TEXT NOT NULL,
	payload       BLOB NOT NULL,
	metrics_json  TEXT,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session_id, engine);

CREATE TABLE IF NOT EXISTS step_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	action_id     TEXT,
	version_id    TEXT,
	engine        TEXT NOT NULL,
	action        TEXT NOT NULL,
	params_json   TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS active_snapshot (
	session_id    TEXT NOT NULL,
	engine        TEXT NOT NULL,
	version_id    TEXT NOT NULL,
	PRIMARY KEY (session_id, engine),
	FOREIGN KEY (version_id) REFERENCES snapshots(version_id)
);
`
// #endregion schema

// #region store-struct
// Store is an append-only trace of session snapshots in SQLite. Nothing is
// ever loaded back into an engine.
type Store struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Store{db: db, enc: enc, dec: dec}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.dec.Close()
	s.enc.Close()
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region record
// Record journals a snapshot and its step_log row in one transaction.
// Rejected actions only write the step_log row.
func (s *Store) Record(snap session.Snapshot, action session.Action) error {
	params, err := json.Marshal(action.Mutation)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	reject := action.Decision == "reject"
	created := snap.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	versionID := ""
	if !reject {
		if err := s.insert(tx, snap, created); err != nil {
			return err
		}
		versionID = snap.VersionID
	}

	err = logging.LogStep(tx, logging.StepEntry{
		SessionID:  snap.SessionID,
		ActionID:   action.ID,
		VersionID:  versionID,
		Engine:     string(snap.Engine),
		Action:     string(action.Mutation.Op),
		ParamsJSON: string(params),
		Decision:   action.Decision,
		Reason:     action.Reason,
		CreatedAt:  created,
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) insert(tx *sql.Tx, snap session.Snapshot, created time.Time) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	metrics, err := json.Marshal(snap.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO snapshots (version_id, session_id, parent_id, engine, revision, points_hash, payload, metrics_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.VersionID, snap.SessionID, nullIfEmpty(snap.ParentID), string(snap.Engine), snap.Revision,
		snap.Fingerprint.String(), s.enc.EncodeAll(payload, nil), string(metrics),
		created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_snapshot (session_id, engine, version_id) VALUES (?, ?, ?)
		 ON CONFLICT(session_id, engine) DO UPDATE SET version_id = excluded.version_id`,
		snap.SessionID, string(snap.Engine), snap.VersionID,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return nil
}
// #endregion record

// #region get-snapshot
const entryColumns = `version_id, session_id, parent_id, engine, revision, points_hash, payload, metrics_json, created_at`

// GetSnapshot retrieves a journaled snapshot by version id.
func (s *Store) GetSnapshot(id string) (Entry, error) {
	row := s.db.QueryRow(`SELECT `+entryColumns+` FROM snapshots WHERE version_id = ?`, id)
	e, err := s.scanEntry(row.Scan)
	if err != nil {
		return Entry{}, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	return e, nil
}
// #endregion get-snapshot

// #region latest
// Latest returns the most recent snapshot of one engine in a session.
func (s *Store) Latest(sessionID string, engine session.Engine) (Entry, error) {
	var versionID string
	err := s.db.QueryRow(
		`SELECT version_id FROM active_snapshot WHERE session_id = ? AND engine = ?`,
		sessionID, string(engine),
	).Scan(&versionID)
	if err != nil {
		return Entry{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetSnapshot(versionID)
}
// #endregion latest

// #region list-snapshots
// ListSnapshots returns the most recent snapshots, newest first. An empty
// sessionID lists every session.
func (s *Store) ListSnapshots(sessionID string, limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT `+entryColumns+` FROM snapshots
		 WHERE (? = '' OR session_id = ?)
		 ORDER BY rowid DESC LIMIT ?`, sessionID, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := s.scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
// #endregion list-snapshots

// #region list-with-steps
// ListWithSteps returns snapshots joined with the step_log row that
// produced them, newest first.
func (s *Store) ListWithSteps(sessionID string, limit int) ([]EntryWithStep, error) {
	rows, err := s.db.Query(
		`SELECT s.version_id, s.session_id, s.parent_id, s.engine, s.revision, s.points_hash, s.payload, s.metrics_json, s.created_at,
		        l.action, l.decision, l.reason, l.params_json
		 FROM snapshots s
		 JOIN step_log l ON l.version_id = s.version_id AND l.decision != 'reject'
		 WHERE (? = '' OR s.session_id = ?)
		 ORDER BY l.id DESC LIMIT ?`, sessionID, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list with steps: %w", err)
	}
	defer rows.Close()

	var out []EntryWithStep
	for rows.Next() {
		var (
			ews            EntryWithStep
			reason, params sql.NullString
		)
		e, err := s.scanEntry(func(dest ...any) error {
			return rows.Scan(append(dest, &ews.Action, &ews.Decision, &reason, &params)...)
		})
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ews.Entry = e
		ews.Reason = reason.String
		ews.ParamsJSON = params.String
		out = append(out, ews)
	}
	return out, rows.Err()
}
// #endregion list-with-steps

// #region sessions
// Sessions lists every journaled session id, most recently active first.
func (s *Store) Sessions() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT session_id FROM step_log GROUP BY session_id ORDER BY MAX(id) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
// #endregion sessions

// #region scan
func (s *Store) scanEntry(scan func(dest ...any) error) (Entry, error) {
	var (
		e          Entry
		engine     string
		parentID   sql.NullString
		metrics    sql.NullString
		payload    []byte
		createdStr string
	)
	if err := scan(&e.VersionID, &e.SessionID, &parentID, &engine, &e.Revision, &e.PointsHash, &payload, &metrics, &createdStr); err != nil {
		return Entry{}, err
	}
	e.Engine = session.Engine(engine)
	e.ParentID = parentID.String
	e.MetricsJSON = metrics.String
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)

	raw, err := s.dec.DecodeAll(payload, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("decompress payload: %w", err)
	}
	if err := json.Unmarshal(raw, &e.Snapshot); err != nil {
		return Entry{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return e, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion scan
