package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/danielpatrickdp/algo-explorer/internal/session"
	"github.com/danielpatrickdp/algo-explorer/internal/tree"
)

// #region styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	labelStyle  = lipgloss.NewStyle().Faint(true)
	phaseStyle  = lipgloss.NewStyle().Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
// #endregion styles

// #region status
// statusLine renders a one-line summary of a snapshot.
func statusLine(s session.Snapshot) string {
	switch {
	case s.KMeans != nil:
		st := s.KMeans.State
		line := fmt.Sprintf("%s %s%d %s%.1f %s%v",
			phaseStyle.Render(st.Phase.String()),
			labelStyle.Render("iter="), st.Iteration,
			labelStyle.Render("inertia="), st.Inertia,
			labelStyle.Render("sizes="), s.KMeans.Sizes)
		if s.KMeans.Converged {
			line += " " + phaseStyle.Render("converged")
		}
		return line
	case s.Tree != nil:
		t := s.Tree
		if !t.Built {
			return phaseStyle.Render("unbuilt") + labelStyle.Render(fmt.Sprintf(" max_depth=%d", t.MaxDepth))
		}
		return fmt.Sprintf("%s %s%d %s%d %s%.3f %s%.3f",
			phaseStyle.Render("built"),
			labelStyle.Render("depth="), t.Depth,
			labelStyle.Render("leaves="), t.Leaves,
			labelStyle.Render("accuracy="), t.Accuracy,
			labelStyle.Render("root_gain="), t.RootGain)
	case s.Regression != nil:
		r := s.Regression
		if !r.State.Initialized {
			return phaseStyle.Render("uninitialized") + labelStyle.Render(fmt.Sprintf(" lr=%g", r.LearningRate))
		}
		return fmt.Sprintf("%s %s%.5f %s%.3f %s%.3f %s%d",
			phaseStyle.Render("fitting"),
			labelStyle.Render("w="), r.State.Weight,
			labelStyle.Render("b="), r.State.Bias,
			labelStyle.Render("loss="), r.Loss,
			labelStyle.Render("iter="), r.State.Iteration)
	}
	return "no snapshot"
}
// #endregion status

// #region detail
// detail renders the full snapshot in a box.
func detail(s session.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render(string(s.Engine)), labelStyle.Render(s.VersionID))
	fmt.Fprintf(&b, "points=%d revision=%d fingerprint=%s\n", len(s.Points()), s.Revision, s.Fingerprint)
	fmt.Fprintln(&b, statusLine(s))

	switch {
	case s.KMeans != nil:
		for i, c := range s.KMeans.State.Centroids {
			fmt.Fprintf(&b, "  centroid %d  (%.2f, %.2f)  size %d\n", i, c.X, c.Y, s.KMeans.Sizes[i])
		}
	case s.Tree != nil && s.Tree.Root != nil:
		writeTree(&b, s.Tree.Root, "  ")
	case s.Regression != nil:
		h := s.Regression.State.LossHistory
		if n := len(h); n > 5 {
			h = h[n-5:]
		}
		for _, l := range h {
			fmt.Fprintf(&b, "  loss %.4f\n", l)
		}
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func writeTree(b *strings.Builder, n tree.Node, indent string) {
	switch v := n.(type) {
	case *tree.Leaf:
		fmt.Fprintf(b, "%sleaf class=%d count=%d\n", indent, v.Class, v.Count)
	case *tree.Split:
		fmt.Fprintf(b, "%s%s < %.0f  gain=%.3f entropy=%.3f n=%d\n", indent, v.Axis, v.Threshold, v.Gain, v.Entropy, v.Count)
		writeTree(b, v.Left, indent+"  ")
		writeTree(b, v.Right, indent+"  ")
	}
}
// #endregion detail
