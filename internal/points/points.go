package points

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
	"github.com/danielpatrickdp/algo-explorer/internal/step"
)

// #region set

// Set is the ordered point cloud under simulation. Points are only ever
// appended, except when the whole set is replaced by Regenerate.
type Set struct {
	points   []Point
	palette  int
	revision uint64
}

// NewSet creates a set whose labels must fall inside [0, palette).
func NewSet(palette int, pts ...Point) (*Set, error) {
	if palette < 1 {
		return nil, fmt.Errorf("%w: palette %d must be at least 1", step.ErrInvalidParameter, palette)
	}
	s := &Set{palette: palette}
	for _, p := range pts {
		if err := s.check(p); err != nil {
			return nil, err
		}
	}
	s.points = append(make([]Point, 0, len(pts)), pts...)
	return s, nil
}

// Len returns the number of points.
func (s *Set) Len() int {
	return len(s.points)
}

// At returns the i-th point.
func (s *Set) At(i int) Point {
	return s.points[i]
}

// Points returns a copy of the points.
func (s *Set) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Palette returns the number of classes.
func (s *Set) Palette() int {
	return s.palette
}

// Revision increments on every structural mutation.
func (s *Set) Revision() uint64 {
	return s.revision
}

// Add appends a point.
func (s *Set) Add(p Point) error {
	if err := s.check(p); err != nil {
		return err
	}
	s.points = append(s.points, p)
	s.revision++
	return nil
}

// Replace swaps in a whole new point sequence, keeping the palette.
func (s *Set) Replace(pts []Point) error {
	for _, p := range pts {
		if err := s.check(p); err != nil {
			return err
		}
	}
	s.points = append(make([]Point, 0, len(pts)), pts...)
	s.revision++
	return nil
}

// Fingerprint hashes palette, coordinates and labels. Two sets with the same
// content share a fingerprint regardless of revision.
func (s *Set) Fingerprint() uint64 {
	return Fingerprint(s.palette, s.points)
}

func (s *Set) check(p Point) error {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return fmt.Errorf("%w: non-finite coordinate (%v, %v)", step.ErrInvalidParameter, p.X, p.Y)
	}
	if p.Label != NoLabel && (p.Label < 0 || int(p.Label) >= s.palette) {
		return fmt.Errorf("%w: label %d outside palette [0,%d)", step.ErrInvalidParameter, p.Label, s.palette)
	}
	return nil
}

// #endregion set

// #region fingerprint

// Fingerprint hashes a palette and point sequence with xxhash.
func Fingerprint(palette int, pts []Point) uint64 {
	d := xxhash.New()
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(palette))
	d.Write(buf)
	for _, p := range pts {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(p.X))
		d.Write(buf)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(p.Y))
		d.Write(buf)
		binary.LittleEndian.PutUint64(buf, uint64(int64(p.Label)))
		d.Write(buf)
	}
	return d.Sum64()
}

// #endregion fingerprint

// #region generate

// Generate draws Gaussian blobs around uniformly placed centres. Each point is
// labelled with its blob index modulo the palette and clamped to the canvas.
func Generate(rng *rand.Rand, config GenerateConfig) (*Set, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", step.ErrInvalidParameter)
	}
	if config.Clusters < 1 || config.PerCluster < 0 {
		return nil, fmt.Errorf("%w: clusters=%d per_cluster=%d", step.ErrInvalidParameter, config.Clusters, config.PerCluster)
	}
	if config.Width <= 0 || config.Height <= 0 || config.Spread < 0 {
		return nil, fmt.Errorf("%w: canvas %vx%v spread %v", step.ErrInvalidParameter, config.Width, config.Height, config.Spread)
	}
	palette := config.Palette
	if palette == 0 {
		palette = config.Clusters
	}

	// Centres keep a margin of one spread from the canvas edge.
	marginX := math.Min(config.Spread, config.Width/4)
	marginY := math.Min(config.Spread, config.Height/4)

	pts := make([]Point, 0, config.Clusters*config.PerCluster)
	for c := 0; c < config.Clusters; c++ {
		cx := marginX + rng.Float64()*(config.Width-2*marginX)
		cy := marginY + rng.Float64()*(config.Height-2*marginY)
		for i := 0; i < config.PerCluster; i++ {
			pts = append(pts, Point{
				X:     clamp(cx+rng.NormFloat64()*config.Spread, 0, config.Width),
				Y:     clamp(cy+rng.NormFloat64()*config.Spread, 0, config.Height),
				Label: Label(c % palette),
			})
		}
	}
	return NewSet(palette, pts...)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// #endregion generate
