package replay

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielpatrickdp/algo-explorer/internal/eval"
	"github.com/danielpatrickdp/algo-explorer/internal/points"
	"github.com/danielpatrickdp/algo-explorer/internal/session"
	"github.com/danielpatrickdp/algo-explorer/internal/tree"
	"gopkg.in/yaml.v3"
)

// #region fixture-types

// Fixture is the top-level structure of a replay fixture, stored as JSON or
// YAML.
type Fixture struct {
	Description     string                  `json:"description" yaml:"description"`
	Seed            uint64                  `json:"seed" yaml:"seed"`
	Config          FixtureConfig           `json:"config" yaml:"config"`
	StartPoints     *FixturePoints          `json:"start_points,omitempty" yaml:"start_points,omitempty"`
	Actions         []FixtureAction         `json:"actions" yaml:"actions"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results,omitempty" yaml:"expected_results,omitempty"`
}

// FixturePoints is an explicit starting point cloud. Without it the session
// generates one from the seed.
type FixturePoints struct {
	Palette int            `json:"palette" yaml:"palette"`
	Points  []points.Point `json:"points" yaml:"points"`
}

// FixtureConfig holds session hyper-parameters. Zero values keep defaults.
type FixtureConfig struct {
	K            int                    `json:"k,omitempty" yaml:"k,omitempty"`
	MaxDepth     int                    `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	LearningRate float64                `json:"learning_rate,omitempty" yaml:"learning_rate,omitempty"`
	OriginOffset *float64               `json:"origin_offset,omitempty" yaml:"origin_offset,omitempty"`
	Grid         *tree.Grid             `json:"grid,omitempty" yaml:"grid,omitempty"`
	Generate     *points.GenerateConfig `json:"generate,omitempty" yaml:"generate,omitempty"`
	Tolerance    float64                `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
}

// FixtureAction is one mutation, optionally repeated.
type FixtureAction struct {
	ID               string `json:"id" yaml:"id"`
	Repeat           int    `json:"repeat,omitempty" yaml:"repeat,omitempty"`
	session.Mutation `yaml:",inline"`
}

// FixtureExpectedResult captures the expected outcome of one action.
type FixtureExpectedResult struct {
	ID        string             `json:"id" yaml:"id"`
	Action    string             `json:"action" yaml:"action"` // "commit" | "reset" | "reject"
	Metrics   map[string]float64 `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tolerance float64            `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads a fixture file. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if isYAML(path) {
		err = yaml.Unmarshal(data, &f)
	} else {
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// SaveFixture writes a fixture in the format implied by the file extension.
func SaveFixture(path string, f *Fixture) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(f)
	} else {
		data, err = json.MarshalIndent(f, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ToSessionConfig overlays the fixture's hyper-parameters on the defaults.
func (fc *FixtureConfig) ToSessionConfig() session.Config {
	cfg := session.DefaultConfig()
	if fc.K > 0 {
		cfg.K = fc.K
	}
	if fc.MaxDepth > 0 {
		cfg.MaxDepth = fc.MaxDepth
	}
	if fc.LearningRate > 0 {
		cfg.Regression.LearningRate = fc.LearningRate
	}
	if fc.OriginOffset != nil {
		cfg.Regression.OriginOffset = *fc.OriginOffset
	}
	if fc.Grid != nil {
		cfg.Grid = *fc.Grid
	}
	if fc.Generate != nil {
		cfg.Generate = *fc.Generate
	}
	return cfg
}

// ToEvalConfig returns the eval tolerances for the run.
func (fc *FixtureConfig) ToEvalConfig() eval.EvalConfig {
	cfg := eval.DefaultEvalConfig()
	if fc.Tolerance > 0 {
		cfg.Tolerance = fc.Tolerance
	}
	return cfg
}

// NewSession builds the fixture's starting session.
func (f *Fixture) NewSession(opts ...session.Option) (*session.Session, error) {
	if f.StartPoints != nil {
		set, err := points.NewSet(f.StartPoints.Palette, f.StartPoints.Points...)
		if err != nil {
			return nil, fmt.Errorf("start points: %w", err)
		}
		opts = append([]session.Option{session.WithPoints(set)}, opts...)
	}
	rng := rand.New(rand.NewPCG(f.Seed, f.Seed^0x9e3779b97f4a7c15))
	return session.New(f.Config.ToSessionConfig(), rng, opts...)
}

// #endregion fixture-loader
