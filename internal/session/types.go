package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/danielpatrickdp/algo-explorer/internal/kmeans"
	"github.com/danielpatrickdp/algo-explorer/internal/points"
	"github.com/danielpatrickdp/algo-explorer/internal/regression"
	"github.com/danielpatrickdp/algo-explorer/internal/step"
	"github.com/danielpatrickdp/algo-explorer/internal/tree"
)

// #region engine

// Engine names one of the three simulations.
type Engine string

const (
	EngineKMeans     Engine = "kmeans"
	EngineTree       Engine = "tree"
	EngineRegression Engine = "regression"
)

// Engines lists every engine in display order.
var Engines = []Engine{EngineKMeans, EngineTree, EngineRegression}

// ParseEngine accepts an engine name.
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case EngineKMeans, EngineTree, EngineRegression:
		return Engine(s), nil
	}
	return "", fmt.Errorf("%w: unknown engine %q", step.ErrInvalidParameter, s)
}

// #endregion engine

// #region config

// Config holds the hyper-parameters a session starts with.
type Config struct {
	K          int
	MaxDepth   int
	Grid       tree.Grid
	Regression regression.Config
	Generate   points.GenerateConfig
}

// DefaultConfig returns the defaults used by the front-ends.
func DefaultConfig() Config {
	return Config{
		K:          3,
		MaxDepth:   3,
		Grid:       tree.DefaultGrid(),
		Regression: regression.DefaultConfig(),
		Generate:   points.DefaultGenerateConfig(),
	}
}

// #endregion config

// #region mutation

// Op names a mutation applied between steps.
type Op string

const (
	OpAddPoint        Op = "add_point"
	OpRegenerate      Op = "regenerate"
	OpSetK            Op = "set_k"
	OpSetMaxDepth     Op = "set_max_depth"
	OpSetLearningRate Op = "set_learning_rate"
	OpSeedCentroids   Op = "seed_centroids"
	OpInitRegression  Op = "init_regression"
	OpReset           Op = "reset"
	OpStep            Op = "step"
)

// Resets reports whether a successful op discards derived engine state.
func (o Op) Resets() bool {
	switch o {
	case OpAddPoint, OpRegenerate, OpSetK, OpSetMaxDepth, OpReset:
		return true
	}
	return false
}

// Mutation is a user action on the session. Only the fields relevant to Op
// are read.
type Mutation struct {
	Op           Op             `json:"op" yaml:"op"`
	Engine       Engine         `json:"engine,omitempty" yaml:"engine,omitempty"`
	Point        *points.Point  `json:"point,omitempty" yaml:"point,omitempty"`
	K            int            `json:"k,omitempty" yaml:"k,omitempty"`
	MaxDepth     *int           `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	LearningRate float64        `json:"learning_rate,omitempty" yaml:"learning_rate,omitempty"`
	Centroids    []points.Point `json:"centroids,omitempty" yaml:"centroids,omitempty"`
	Weight       float64        `json:"weight,omitempty" yaml:"weight,omitempty"`
	Bias         float64        `json:"bias,omitempty" yaml:"bias,omitempty"`
}

// #endregion mutation

// #region snapshot

// Snapshot is the session-level view of one engine. Exactly one of KMeans,
// Tree and Regression is set, matching Engine.
type Snapshot struct {
	SessionID   string               `json:"session_id"`
	VersionID   string               `json:"version_id"`
	ParentID    string               `json:"parent_id,omitempty"`
	Engine      Engine               `json:"engine"`
	Revision    uint64               `json:"revision"`
	Fingerprint Fingerprint          `json:"fingerprint"`
	Palette     int                  `json:"palette"`
	KMeans      *kmeans.Snapshot     `json:"kmeans,omitempty"`
	Tree        *tree.Snapshot       `json:"tree,omitempty"`
	Regression  *regression.Snapshot `json:"regression,omitempty"`
	Metrics     map[string]float64   `json:"metrics"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Points returns the point cloud the engine snapshot was taken over.
func (s Snapshot) Points() []points.Point {
	switch {
	case s.KMeans != nil:
		return s.KMeans.Points
	case s.Tree != nil:
		return s.Tree.Points
	case s.Regression != nil:
		return s.Regression.Points
	}
	return nil
}

// Fingerprint is a point-set hash that survives JSON as a hex string.
type Fingerprint uint64

// String formats the fingerprint as 16 hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// MarshalJSON encodes the fingerprint as a hex string.
func (f Fingerprint) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON decodes a hex string fingerprint.
func (f *Fingerprint) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return fmt.Errorf("parse fingerprint %q: %w", s, err)
	}
	*f = Fingerprint(v)
	return nil
}

// #endregion snapshot

// #region recorder

// Action describes why a snapshot was produced. Snapshots produced by the
// same Apply call share an ID.
type Action struct {
	ID       string
	Mutation Mutation
	Decision string // "commit" | "reset" | "reject"
	Reason   string
}

// Recorder receives every snapshot the session produces. Recording errors are
// logged and never fail the step.
type Recorder interface {
	Record(snap Snapshot, action Action) error
}

// #endregion recorder
