package journal

import (
	"time"

	"github.com/danielpatrickdp/algo-explorer/internal/session"
)

// #region entry
// Entry is one journaled snapshot.
type Entry struct {
	VersionID   string
	SessionID   string
	ParentID    string
	Engine      session.Engine
	Revision    uint64
	PointsHash  string
	MetricsJSON string
	CreatedAt   time.Time
	Snapshot    session.Snapshot
}
// #endregion entry

// #region entry-with-step
// EntryWithStep pairs a snapshot with the step_log row that produced it.
type EntryWithStep struct {
	Entry
	Action     string
	Decision   string
	Reason     string
	ParamsJSON string
}
// #endregion entry-with-step
