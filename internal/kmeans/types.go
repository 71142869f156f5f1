package kmeans

import (
	"errors"

	"github.com/danielpatrickdp/algo-explorer/internal/points"
)

// #region phase

// Phase is the position of the engine in its assign/update cycle.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseAssign
	PhaseUpdate
)

func (p Phase) String() string {
	switch p {
	case PhaseAssign:
		return "assign"
	case PhaseUpdate:
		return "update"
	default:
		return "uninitialized"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "assign":
		*p = PhaseAssign
	case "update":
		*p = PhaseUpdate
	case "uninitialized", "":
		*p = PhaseUninitialized
	default:
		return errors.New("kmeans: unknown phase " + string(b))
	}
	return nil
}

// #endregion phase

// #region errors

// ErrOutOfPhase is returned when StepAssign or StepUpdate is called in the
// wrong phase.
var ErrOutOfPhase = errors.New("kmeans: step out of phase")

// #endregion errors

// #region state

// State is the derived clustering state. Assignment holds -1 for points not
// yet assigned.
type State struct {
	Centroids  []points.Point `json:"centroids"`
	Assignment []int          `json:"assignment"`
	Inertia    float64        `json:"inertia"`
	Phase      Phase          `json:"phase"`
	Iteration  int            `json:"iteration"`
}

// #endregion state

// #region snapshot

// Snapshot is an immutable copy of the engine taken between steps.
type Snapshot struct {
	Points    []points.Point `json:"points"`
	K         int            `json:"k"`
	State     State          `json:"state"`
	Sizes     []int          `json:"sizes"`
	Converged bool           `json:"converged"` // last assign left every point in place
}

// #endregion snapshot
