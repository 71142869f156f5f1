package points

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/danielpatrickdp/algo-explorer/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewSet_ValidatesPalette(t *testing.T) {
	_, err := NewSet(0)
	assert.ErrorIs(t, err, step.ErrInvalidParameter)

	_, err = NewSet(2, Point{X: 1, Y: 1, Label: 2})
	assert.ErrorIs(t, err, step.ErrInvalidParameter)

	s, err := NewSet(2, Point{X: 1, Y: 1, Label: 1}, Point{X: 2, Y: 2, Label: NoLabel})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.At(1).Labelled())
}

func TestSet_AddBumpsRevisionAndFingerprint(t *testing.T) {
	s, err := NewSet(2)
	require.NoError(t, err)
	before := s.Fingerprint()

	require.NoError(t, s.Add(Point{X: 3, Y: 4, Label: 0}))
	assert.Equal(t, uint64(1), s.Revision())
	assert.NotEqual(t, before, s.Fingerprint())

	err = s.Add(Point{X: math.NaN(), Y: 0, Label: 0})
	assert.ErrorIs(t, err, step.ErrInvalidParameter)
	assert.Equal(t, 1, s.Len(), "rejected point must not be appended")
	assert.Equal(t, uint64(1), s.Revision())
}

func TestSet_PointsIsACopy(t *testing.T) {
	s, err := NewSet(1, Point{X: 1, Y: 1, Label: 0})
	require.NoError(t, err)

	pts := s.Points()
	pts[0].X = 99
	assert.Equal(t, 1.0, s.At(0).X)
}

func TestSet_ReplaceKeepsPalette(t *testing.T) {
	s, err := NewSet(2, Point{X: 1, Y: 1, Label: 0})
	require.NoError(t, err)

	require.NoError(t, s.Replace([]Point{{X: 5, Y: 5, Label: 1}, {X: 6, Y: 6, Label: 1}}))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, s.Palette())

	assert.Error(t, s.Replace([]Point{{X: 1, Y: 1, Label: 7}}))
	assert.Equal(t, 2, s.Len())
}

func TestFingerprint_ContentAddressed(t *testing.T) {
	a := []Point{{X: 1, Y: 2, Label: 0}, {X: 3, Y: 4, Label: 1}}
	b := []Point{{X: 3, Y: 4, Label: 1}, {X: 1, Y: 2, Label: 0}}

	assert.Equal(t, Fingerprint(2, a), Fingerprint(2, a))
	assert.NotEqual(t, Fingerprint(2, a), Fingerprint(2, b), "order matters")
	assert.NotEqual(t, Fingerprint(2, a), Fingerprint(3, a), "palette matters")
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := DefaultGenerateConfig()

	s1, err := Generate(rand.New(rand.NewPCG(7, 11)), cfg)
	require.NoError(t, err)
	s2, err := Generate(rand.New(rand.NewPCG(7, 11)), cfg)
	require.NoError(t, err)

	assert.Equal(t, cfg.Clusters*cfg.PerCluster, s1.Len())
	assert.Equal(t, s1.Fingerprint(), s2.Fingerprint())

	for _, p := range s1.Points() {
		assert.True(t, p.X >= 0 && p.X <= cfg.Width, "x out of canvas: %v", p.X)
		assert.True(t, p.Y >= 0 && p.Y <= cfg.Height, "y out of canvas: %v", p.Y)
		assert.True(t, int(p.Label) < cfg.Palette)
	}
}

func TestGenerate_Rejects(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))

	_, err := Generate(rng, GenerateConfig{Clusters: 0, PerCluster: 5, Width: 10, Height: 10})
	assert.ErrorIs(t, err, step.ErrInvalidParameter)

	_, err = Generate(nil, DefaultGenerateConfig())
	assert.ErrorIs(t, err, step.ErrInvalidParameter)
}

func TestGenerate_PaletteDefaultsToClusters(t *testing.T) {
	cfg := GenerateConfig{Clusters: 4, PerCluster: 2, Spread: 5, Width: 100, Height: 100}
	s, err := Generate(rand.New(rand.NewPCG(3, 3)), cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Palette())
}

func TestPoint_SquaredDistance(t *testing.T) {
	assert.Equal(t, 25.0, Point{X: 0, Y: 0}.SquaredDistance(Point{X: 3, Y: 4}))
}

func TestPoint_AbsentLabelDecodesAsNoLabel(t *testing.T) {
	var p Point
	require.NoError(t, json.Unmarshal([]byte(`{"x": 3, "y": 4}`), &p))
	assert.Equal(t, Point{X: 3, Y: 4, Label: NoLabel}, p)
	assert.False(t, p.Labelled())

	require.NoError(t, json.Unmarshal([]byte(`{"x": 3, "y": 4, "label": 0}`), &p))
	assert.Equal(t, Point{X: 3, Y: 4, Label: 0}, p)

	var y Point
	require.NoError(t, yaml.Unmarshal([]byte("{x: 1, y: 2}"), &y))
	assert.Equal(t, Point{X: 1, Y: 2, Label: NoLabel}, y)

	require.NoError(t, yaml.Unmarshal([]byte("{x: 1, y: 2, label: 1}"), &y))
	assert.Equal(t, Point{X: 1, Y: 2, Label: 1}, y)

	var pts []Point
	require.NoError(t, json.Unmarshal([]byte(`[{"x": 1, "y": 1}, {"x": 2, "y": 2, "label": 1}]`), &pts))
	assert.Equal(t, []Point{{X: 1, Y: 1, Label: NoLabel}, {X: 2, Y: 2, Label: 1}}, pts)
}
