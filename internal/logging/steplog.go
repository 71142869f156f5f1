package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-step
// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// LogStep writes an entry to the step_log table.
func LogStep(db Execer, entry StepEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO step_log (session_id, action_id, version_id, engine, action, params_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		nullIfEmpty(entry.ActionID),
		nullIfEmpty(entry.VersionID),
		entry.Engine,
		entry.Action,
		nullIfEmpty(entry.ParamsJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log step: %w", err)
	}
	return nil
}
// #endregion log-step

// #region list-steps
// ListSteps returns a session's step log in insertion order.
func ListSteps(db *sql.DB, sessionID string) ([]StepEntry, error) {
	rows, err := db.Query(
		`SELECT id, session_id, action_id, version_id, engine, action, params_json, decision, reason, created_at
		 FROM step_log WHERE session_id = ? ORDER BY id ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var out []StepEntry
	for rows.Next() {
		var (
			e                                   StepEntry
			actionID, versionID, params, reason sql.NullString
			createdAt                           string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &actionID, &versionID, &e.Engine, &e.Action, &params, &e.Decision, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		e.ActionID = actionID.String
		e.VersionID = versionID.String
		e.ParamsJSON = params.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
// #endregion list-steps

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
