package tree

import (
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/algo-explorer/internal/points"
	"github.com/danielpatrickdp/algo-explorer/internal/step"
)

// #region engine

// Engine rebuilds the whole tree on every step. There is no per-node mode;
// revealing nodes one at a time is left to the renderer.
type Engine struct {
	pts      []points.Point
	maxDepth int
	grid     Grid
	root     Node
	built    bool
}

// NewEngine creates an engine with the given depth limit and threshold grid.
func NewEngine(maxDepth int, grid Grid) (*Engine, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("%w: max depth %d must not be negative", step.ErrInvalidParameter, maxDepth)
	}
	if grid.Step <= 0 {
		return nil, fmt.Errorf("%w: grid step %v must be positive", step.ErrInvalidParameter, grid.Step)
	}
	return &Engine{maxDepth: maxDepth, grid: grid}, nil
}

// MaxDepth returns the configured depth limit.
func (e *Engine) MaxDepth() int {
	return e.maxDepth
}

// SetPoints replaces the point cloud and discards the tree.
func (e *Engine) SetPoints(pts []points.Point) {
	e.pts = append(make([]points.Point, 0, len(pts)), pts...)
	e.Reset()
}

// SetMaxDepth changes the depth limit and discards the tree.
func (e *Engine) SetMaxDepth(d int) error {
	if d < 0 {
		return fmt.Errorf("%w: max depth %d must not be negative", step.ErrInvalidParameter, d)
	}
	e.maxDepth = d
	e.Reset()
	return nil
}

// Step builds the tree from scratch.
func (e *Engine) Step() error {
	root, err := Build(e.pts, e.maxDepth, e.grid)
	if err != nil {
		return err
	}
	e.root = root
	e.built = true
	return nil
}

// Reset discards the tree.
func (e *Engine) Reset() {
	e.root = nil
	e.built = false
}

// Predict classifies p with the current tree.
func (e *Engine) Predict(p points.Point) (points.Label, error) {
	if !e.built {
		return points.NoLabel, ErrNotBuilt
	}
	return Predict(e.root, p), nil
}

// #endregion engine

// #region snapshot

// Snapshot is an immutable copy of the engine taken between steps.
type Snapshot struct {
	Points      []points.Point
	MaxDepth    int
	Grid        Grid
	Built       bool
	Root        Node
	Depth       int
	Leaves      int
	Accuracy    float64
	RootEntropy float64
	RootGain    float64
}

// Snapshot returns a deep copy of the current tree and its metrics.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Points:   append([]points.Point(nil), e.pts...),
		MaxDepth: e.maxDepth,
		Grid:     e.grid,
		Built:    e.built,
		Root:     Clone(e.root),
	}
	if e.root == nil {
		return s
	}
	s.Depth = Depth(e.root)
	s.Leaves = len(Leaves(e.root))
	s.Accuracy = Accuracy(e.root, e.pts)
	switch v := e.root.(type) {
	case *Split:
		s.RootEntropy = v.Entropy
		s.RootGain = v.Gain
	case *Leaf:
		s.RootEntropy = 0
	}
	return s
}

// #endregion snapshot

// #region encoding

// Encoded is the serialisable form of a Node.
type Encoded struct {
	Kind      string       `json:"kind"`
	Class     points.Label `json:"class,omitempty"`
	Count     int          `json:"count"`
	Depth     int          `json:"depth"`
	Axis      Axis         `json:"axis,omitempty"`
	Threshold float64      `json:"threshold,omitempty"`
	Gain      float64      `json:"gain,omitempty"`
	Entropy   float64      `json:"entropy,omitempty"`
	Left      *Encoded     `json:"left,omitempty"`
	Right     *Encoded     `json:"right,omitempty"`
}

// Encode converts a tree to its serialisable form.
func Encode(root Node) *Encoded {
	switch v := root.(type) {
	case *Leaf:
		return &Encoded{Kind: "leaf", Class: v.Class, Count: v.Count, Depth: v.Depth}
	case *Split:
		return &Encoded{
			Kind:      "split",
			Count:     v.Count,
			Depth:     v.Depth,
			Axis:      v.Axis,
			Threshold: v.Threshold,
			Gain:      v.Gain,
			Entropy:   v.Entropy,
			Left:      Encode(v.Left),
			Right:     Encode(v.Right),
		}
	default:
		return nil
	}
}

// Decode rebuilds a tree from its serialisable form.
func (e *Encoded) Decode() (Node, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Kind {
	case "leaf":
		return &Leaf{Class: e.Class, Count: e.Count, Depth: e.Depth}, nil
	case "split":
		left, err := e.Left.Decode()
		if err != nil {
			return nil, err
		}
		right, err := e.Right.Decode()
		if err != nil {
			return nil, err
		}
		if left == nil || right == nil {
			return nil, fmt.Errorf("tree: split at depth %d is missing a child", e.Depth)
		}
		return &Split{
			Axis:      e.Axis,
			Threshold: e.Threshold,
			Gain:      e.Gain,
			Entropy:   e.Entropy,
			Count:     e.Count,
			Depth:     e.Depth,
			Left:      left,
			Right:     right,
		}, nil
	default:
		return nil, fmt.Errorf("tree: unknown node kind %q", e.Kind)
	}
}

type snapshotJSON struct {
	Points      []points.Point `json:"points"`
	MaxDepth    int            `json:"max_depth"`
	Grid        Grid           `json:"grid"`
	Built       bool           `json:"built"`
	Root        *Encoded       `json:"root,omitempty"`
	Depth       int            `json:"depth"`
	Leaves      int            `json:"leaves"`
	Accuracy    float64        `json:"accuracy"`
	RootEntropy float64        `json:"root_entropy"`
	RootGain    float64        `json:"root_gain"`
}

// MarshalJSON encodes the snapshot with its tree in tagged form.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		Points:      s.Points,
		MaxDepth:    s.MaxDepth,
		Grid:        s.Grid,
		Built:       s.Built,
		Root:        Encode(s.Root),
		Depth:       s.Depth,
		Leaves:      s.Leaves,
		Accuracy:    s.Accuracy,
		RootEntropy: s.RootEntropy,
		RootGain:    s.RootGain,
	})
}

// UnmarshalJSON decodes a snapshot written by MarshalJSON.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	root, err := raw.Root.Decode()
	if err != nil {
		return err
	}
	*s = Snapshot{
		Points:      raw.Points,
		MaxDepth:    raw.MaxDepth,
		Grid:        raw.Grid,
		Built:       raw.Built,
		Root:        root,
		Depth:       raw.Depth,
		Leaves:      raw.Leaves,
		Accuracy:    raw.Accuracy,
		RootEntropy: raw.RootEntropy,
		RootGain:    raw.RootGain,
	}
	return nil
}

// #endregion encoding
