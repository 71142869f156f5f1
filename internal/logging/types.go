package logging

import (
	"io"
	"time"
)

// #region step-entry
// StepEntry is a single row in the step_log table.
type StepEntry struct {
	ID         int64
	SessionID  string
	ActionID   string // shared by rows written for one mutation
	VersionID  string // empty for rejected actions
	Engine     string
	Action     string // mutation op, e.g. "step" | "add_point" | "set_k"
	ParamsJSON string
	Decision   string // "commit" | "reset" | "reject"
	Reason     string
	CreatedAt  time.Time
}
// #endregion step-entry

// #region logger-config
// Config selects the level, format and destination of structured logs.
type Config struct {
	Level   string // debug | info | warn | error
	Format  string // text | json
	Service string
	Output  io.Writer // defaults to stderr
}

// DefaultConfig returns info-level text logging to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text", Service: "algo-explorer"}
}
// #endregion logger-config
