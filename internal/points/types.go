package points

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// #region label

// Label is a class index drawn from the set's palette. NoLabel marks an
// unlabelled point.
type Label int

// NoLabel is the label of a point without a class.
const NoLabel Label = -1

// #endregion label

// #region point

// Point is a 2-D coordinate with an optional class label.
type Point struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Label Label   `json:"label" yaml:"label"`
}

// Labelled reports whether the point carries a class label.
func (p Point) Labelled() bool {
	return p.Label >= 0
}

// pointFields decodes a Point without recursing into its decoders.
type pointFields Point

// UnmarshalJSON decodes a point; an absent label means NoLabel.
func (p *Point) UnmarshalJSON(data []byte) error {
	f := pointFields{Label: NoLabel}
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*p = Point(f)
	return nil
}

// UnmarshalYAML decodes a point; an absent label means NoLabel.
func (p *Point) UnmarshalYAML(value *yaml.Node) error {
	f := pointFields{Label: NoLabel}
	if err := value.Decode(&f); err != nil {
		return err
	}
	*p = Point(f)
	return nil
}

// SquaredDistance returns the squared Euclidean distance between p and q.
func (p Point) SquaredDistance(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// #endregion point

// #region generate-config

// GenerateConfig controls synthetic clustered point generation.
type GenerateConfig struct {
	Clusters   int     `json:"clusters" yaml:"clusters"`
	PerCluster int     `json:"per_cluster" yaml:"per_cluster"`
	Spread     float64 `json:"spread" yaml:"spread"`   // standard deviation of each blob
	Width      float64 `json:"width" yaml:"width"`     // canvas extent on x
	Height     float64 `json:"height" yaml:"height"`   // canvas extent on y
	Palette    int     `json:"palette" yaml:"palette"` // number of classes; 0 = Clusters
}

// DefaultGenerateConfig returns the canvas used by the explorer front-ends.
func DefaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Clusters:   3,
		PerCluster: 30,
		Spread:     40,
		Width:      800,
		Height:     600,
		Palette:    3,
	}
}

// #endregion generate-config
