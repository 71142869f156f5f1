package tree

import (
	"fmt"

	"github.com/danielpatrickdp/algo-explorer/internal/points"
	"github.com/danielpatrickdp/algo-explorer/internal/step"
)

// #region build

// Build induces a tree over the labelled points by recursive information-gain
// splitting on the fixed threshold grid. Unlabelled points are ignored and a
// set with no labelled points yields a nil tree. Build is deterministic.
func Build(pts []points.Point, maxDepth int, grid Grid) (Node, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("%w: max depth %d must not be negative", step.ErrInvalidParameter, maxDepth)
	}
	if grid.Step <= 0 {
		return nil, fmt.Errorf("%w: grid step %v must be positive", step.ErrInvalidParameter, grid.Step)
	}

	labelled := make([]points.Point, 0, len(pts))
	classes := 0
	for _, p := range pts {
		if !p.Labelled() {
			continue
		}
		labelled = append(labelled, p)
		if int(p.Label)+1 > classes {
			classes = int(p.Label) + 1
		}
	}
	if len(labelled) == 0 {
		return nil, nil
	}

	b := builder{
		maxDepth: maxDepth,
		classes:  classes,
		candidates: [2][]float64{
			AxisX: grid.Thresholds(AxisX),
			AxisY: grid.Thresholds(AxisY),
		},
	}
	return b.build(labelled, 0), nil
}

type builder struct {
	maxDepth   int
	classes    int
	candidates [2][]float64
}

type candidate struct {
	axis      Axis
	threshold float64
	gain      float64
}

func (b *builder) build(pts []points.Point, depth int) Node {
	counts := b.counts(pts)
	if depth >= b.maxDepth || len(pts) < 2 {
		return b.leaf(counts, depth)
	}

	parentEntropy := Entropy(counts)
	var best candidate
	found := false
	left := make([]int, b.classes)
	right := make([]int, b.classes)
	for _, axis := range []Axis{AxisX, AxisY} {
		for _, t := range b.candidates[axis] {
			clear(left)
			clear(right)
			nl, nr := 0, 0
			for _, p := range pts {
				if axis.Value(p) < t {
					left[p.Label]++
					nl++
				} else {
					right[p.Label]++
					nr++
				}
			}
			if nl == 0 || nr == 0 {
				continue
			}
			n := float64(len(pts))
			gain := parentEntropy -
				float64(nl)/n*Entropy(left) -
				float64(nr)/n*Entropy(right)
			if !found || gain > best.gain {
				best = candidate{axis: axis, threshold: t, gain: gain}
				found = true
			}
		}
	}
	if !found || best.gain < MinGain {
		return b.leaf(counts, depth)
	}

	var lpts, rpts []points.Point
	for _, p := range pts {
		if best.axis.Value(p) < best.threshold {
			lpts = append(lpts, p)
		} else {
			rpts = append(rpts, p)
		}
	}
	return &Split{
		Axis:      best.axis,
		Threshold: best.threshold,
		Gain:      best.gain,
		Entropy:   parentEntropy,
		Count:     len(pts),
		Depth:     depth,
		Left:      b.build(lpts, depth+1),
		Right:     b.build(rpts, depth+1),
	}
}

func (b *builder) counts(pts []points.Point) []int {
	counts := make([]int, b.classes)
	for _, p := range pts {
		counts[p.Label]++
	}
	return counts
}

func (b *builder) leaf(counts []int, depth int) *Leaf {
	return &Leaf{Class: Majority(counts), Count: sum(counts), Depth: depth}
}

// Majority returns the most frequent class, the lowest index on ties, or
// NoLabel for an empty histogram.
func Majority(counts []int) points.Label {
	best := points.NoLabel
	bestCount := 0
	for c, n := range counts {
		if n > bestCount {
			best = points.Label(c)
			bestCount = n
		}
	}
	return best
}

// #endregion build

// #region predict

// Predict routes p from the root to a leaf and returns that leaf's class.
func Predict(root Node, p points.Point) points.Label {
	n := root
	for n != nil {
		switch v := n.(type) {
		case *Leaf:
			return v.Class
		case *Split:
			if v.Axis.Value(p) < v.Threshold {
				n = v.Left
			} else {
				n = v.Right
			}
		default:
			return points.NoLabel
		}
	}
	return points.NoLabel
}

// Accuracy is the fraction of labelled points whose label matches Predict.
// It is 0 when there is no tree or no labelled point.
func Accuracy(root Node, pts []points.Point) float64 {
	if root == nil {
		return 0
	}
	total, correct := 0, 0
	for _, p := range pts {
		if !p.Labelled() {
			continue
		}
		total++
		if Predict(root, p) == p.Label {
			correct++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// #endregion predict

// #region traversal

// Walk visits nodes in pre-order. Returning false from fn skips the children
// of that node.
func Walk(root Node, fn func(n Node) bool) {
	if root == nil {
		return
	}
	if !fn(root) {
		return
	}
	if s, ok := root.(*Split); ok {
		Walk(s.Left, fn)
		Walk(s.Right, fn)
	}
}

// Depth is the longest root-to-leaf edge count; 0 for a single leaf or nil.
func Depth(root Node) int {
	s, ok := root.(*Split)
	if !ok {
		return 0
	}
	return 1 + max(Depth(s.Left), Depth(s.Right))
}

// Leaves returns every leaf in left-to-right order.
func Leaves(root Node) []*Leaf {
	var out []*Leaf
	Walk(root, func(n Node) bool {
		if l, ok := n.(*Leaf); ok {
			out = append(out, l)
		}
		return true
	})
	return out
}

// Clone deep-copies a tree.
func Clone(root Node) Node {
	switch v := root.(type) {
	case *Leaf:
		c := *v
		return &c
	case *Split:
		c := *v
		c.Left = Clone(v.Left)
		c.Right = Clone(v.Right)
		return &c
	default:
		return nil
	}
}

// #endregion traversal
