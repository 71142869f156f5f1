package tree

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/algo-explorer/internal/points"
)

// #region constants

// MinGain is the smallest information gain worth splitting on.
const MinGain = 0.01

// #endregion constants

// #region axis

// Axis selects the coordinate a split compares.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisY {
		return "y"
	}
	return "x"
}

// Value returns the coordinate of p on this axis.
func (a Axis) Value(p points.Point) float64 {
	if a == AxisY {
		return p.Y
	}
	return p.X
}

// MarshalText encodes the axis as "x" or "y".
func (a Axis) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes "x" or "y".
func (a *Axis) UnmarshalText(b []byte) error {
	switch string(b) {
	case "x":
		*a = AxisX
	case "y":
		*a = AxisY
	default:
		return fmt.Errorf("tree: unknown axis %q", string(b))
	}
	return nil
}

// #endregion axis

// #region node

// Node is either a *Leaf or a *Split.
type Node interface {
	node()
}

// Leaf predicts the majority class of the points that reached it.
type Leaf struct {
	Class points.Label
	Count int
	Depth int
}

// Split routes points with Axis value < Threshold left and the rest right.
type Split struct {
	Axis      Axis
	Threshold float64
	Gain      float64
	Entropy   float64 // entropy of the points reaching this split
	Count     int
	Depth     int
	Left      Node
	Right     Node
}

func (*Leaf) node()  {}
func (*Split) node() {}

// #endregion node

// #region grid

// Grid is the fixed set of candidate thresholds: Step, 2·Step, ... strictly
// below MaxX on x and MaxY on y.
type Grid struct {
	Step float64 `json:"step" yaml:"step"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MaxY float64 `json:"max_y" yaml:"max_y"`
}

// DefaultGrid covers the default 800x600 canvas in steps of 100.
func DefaultGrid() Grid {
	return Grid{Step: 100, MaxX: 800, MaxY: 600}
}

// Thresholds lists the candidate thresholds on one axis in ascending order.
func (g Grid) Thresholds(a Axis) []float64 {
	limit := g.MaxX
	if a == AxisY {
		limit = g.MaxY
	}
	if g.Step <= 0 {
		return nil
	}
	var out []float64
	for i := 1; ; i++ {
		t := float64(i) * g.Step
		if t >= limit {
			break
		}
		out = append(out, t)
	}
	return out
}

// #endregion grid

// #region errors

// ErrNotBuilt is returned when a prediction is requested before a build.
var ErrNotBuilt = errors.New("tree: not built")

// #endregion errors
