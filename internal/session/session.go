package session

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/danielpatrickdp/algo-explorer/internal/kmeans"
	"github.com/danielpatrickdp/algo-explorer/internal/points"
	"github.com/danielpatrickdp/algo-explorer/internal/regression"
	"github.com/danielpatrickdp/algo-explorer/internal/step"
	"github.com/danielpatrickdp/algo-explorer/internal/tree"
	"github.com/google/uuid"
)

// #region session-struct

// Session owns a point cloud and the three engines derived from it. Steps
// and mutations are serialised; a mutation always lands between two steps.
type Session struct {
	mu     sync.Mutex
	id     string
	config Config
	rng    *rand.Rand
	set    *points.Set

	km  *kmeans.Engine
	dt  *tree.Engine
	reg *regression.Engine

	heads    map[Engine]string
	actionID string
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithRecorder records every snapshot, e.g. into a journal.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithPoints starts from an existing point set instead of generating one.
func WithPoints(set *points.Set) Option {
	return func(s *Session) { s.set = set }
}

// WithID fixes the session id.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// #endregion session-struct

// #region constructor

// New creates a session. Randomness (point generation, centroid seeding and
// initial regression weights) all comes from rng.
func New(config Config, rng *rand.Rand, opts ...Option) (*Session, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", step.ErrInvalidParameter)
	}
	s := &Session{
		config: config,
		rng:    rng,
		heads:  make(map[Engine]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.New().String()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("session_id", s.id)

	var err error
	if s.km, err = kmeans.NewEngine(config.K, rng); err != nil {
		return nil, err
	}
	if s.dt, err = tree.NewEngine(config.MaxDepth, config.Grid); err != nil {
		return nil, err
	}
	if s.reg, err = regression.NewEngine(config.Regression, rng); err != nil {
		return nil, err
	}
	if s.set == nil {
		if s.set, err = points.Generate(rng, config.Generate); err != nil {
			return nil, fmt.Errorf("generate points: %w", err)
		}
	}
	s.propagate()

	start := Mutation{Op: OpReset}
	s.actionID = uuid.New().String()
	for _, e := range Engines {
		s.commit(e, start, "reset", "session start")
	}
	s.logger.Info("session started", "points", s.set.Len(), "k", config.K, "max_depth", config.MaxDepth)
	return s, nil
}

// #endregion constructor

// #region accessors

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Points returns a copy of the current point cloud.
func (s *Session) Points() []points.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Points()
}

// Palette returns the number of classes.
func (s *Session) Palette() int {
	return s.set.Palette()
}

// LearningRate returns the regression engine's current rate.
func (s *Session) LearningRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.LearningRate()
}

// #endregion accessors

// #region mutations

// AddPoint appends a point and resets every engine.
func (s *Session) AddPoint(p points.Point) error {
	_, err := s.Apply(Mutation{Op: OpAddPoint, Point: &p})
	return err
}

// Regenerate replaces the cloud with fresh synthetic clusters and resets
// every engine.
func (s *Session) Regenerate() error {
	_, err := s.Apply(Mutation{Op: OpRegenerate})
	return err
}

// SetK changes k and resets the k-means engine.
func (s *Session) SetK(k int) error {
	_, err := s.Apply(Mutation{Op: OpSetK, K: k})
	return err
}

// SetMaxDepth changes the tree depth limit and resets the tree engine.
func (s *Session) SetMaxDepth(d int) error {
	_, err := s.Apply(Mutation{Op: OpSetMaxDepth, MaxDepth: &d})
	return err
}

// SetLearningRate changes the learning rate without resetting the fit.
func (s *Session) SetLearningRate(lr float64) error {
	_, err := s.Apply(Mutation{Op: OpSetLearningRate, LearningRate: lr})
	return err
}

// Apply performs a mutation (or a step) and returns the snapshots it
// produced. Rejected mutations leave every engine untouched.
func (s *Session) Apply(m Mutation) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.actionID = uuid.New().String()
	snaps, err := s.apply(m)
	if err != nil {
		s.reject(m, err)
		return nil, err
	}
	return snaps, nil
}

func (s *Session) apply(m Mutation) ([]Snapshot, error) {
	switch m.Op {
	case OpAddPoint:
		if m.Point == nil {
			return nil, fmt.Errorf("%w: add_point without a point", step.ErrInvalidParameter)
		}
		if err := s.set.Add(*m.Point); err != nil {
			return nil, err
		}
		s.propagate()
		return s.commitAll(m, fmt.Sprintf("point added (%.1f, %.1f)", m.Point.X, m.Point.Y)), nil

	case OpRegenerate:
		gen := s.config.Generate
		gen.Palette = s.set.Palette()
		fresh, err := points.Generate(s.rng, gen)
		if err != nil {
			return nil, err
		}
		if err := s.set.Replace(fresh.Points()); err != nil {
			return nil, err
		}
		s.propagate()
		return s.commitAll(m, "point cloud regenerated"), nil

	case OpSetK:
		if err := s.km.SetK(m.K); err != nil {
			return nil, err
		}
		resetsTotal.WithLabelValues(string(EngineKMeans), string(m.Op)).Inc()
		return []Snapshot{s.commit(EngineKMeans, m, "reset", fmt.Sprintf("k set to %d", m.K))}, nil

	case OpSetMaxDepth:
		if m.MaxDepth == nil {
			return nil, fmt.Errorf("%w: set_max_depth without a depth", step.ErrInvalidParameter)
		}
		if err := s.dt.SetMaxDepth(*m.MaxDepth); err != nil {
			return nil, err
		}
		resetsTotal.WithLabelValues(string(EngineTree), string(m.Op)).Inc()
		return []Snapshot{s.commit(EngineTree, m, "reset", fmt.Sprintf("max depth set to %d", *m.MaxDepth))}, nil

	case OpSetLearningRate:
		if err := s.reg.SetLearningRate(m.LearningRate); err != nil {
			return nil, err
		}
		return []Snapshot{s.commit(EngineRegression, m, "commit", fmt.Sprintf("learning rate set to %g", m.LearningRate))}, nil

	case OpSeedCentroids:
		if err := s.km.Seed(m.Centroids); err != nil {
			return nil, err
		}
		return []Snapshot{s.commit(EngineKMeans, m, "commit", fmt.Sprintf("seeded %d centroids", len(m.Centroids)))}, nil

	case OpInitRegression:
		s.reg.InitializeWith(m.Weight, m.Bias)
		return []Snapshot{s.commit(EngineRegression, m, "commit", fmt.Sprintf("line set to w=%g b=%g", m.Weight, m.Bias))}, nil

	case OpReset:
		engines := Engines
		if m.Engine != "" {
			e, err := ParseEngine(string(m.Engine))
			if err != nil {
				return nil, err
			}
			engines = []Engine{e}
		}
		out := make([]Snapshot, 0, len(engines))
		for _, e := range engines {
			s.resetEngine(e)
			resetsTotal.WithLabelValues(string(e), string(m.Op)).Inc()
			out = append(out, s.commit(e, Mutation{Op: OpReset, Engine: e}, "reset", "reset requested"))
		}
		return out, nil

	case OpStep:
		e, err := ParseEngine(string(m.Engine))
		if err != nil {
			return nil, err
		}
		snap, err := s.step(e)
		if err != nil {
			return nil, err
		}
		return []Snapshot{snap}, nil
	}
	return nil, fmt.Errorf("%w: unknown op %q", step.ErrInvalidParameter, m.Op)
}

// propagate hands the current cloud to every engine, which resets them.
func (s *Session) propagate() {
	pts := s.set.Points()
	s.km.SetPoints(pts)
	s.dt.SetPoints(pts)
	s.reg.SetPoints(pts)
}

func (s *Session) commitAll(m Mutation, reason string) []Snapshot {
	out := make([]Snapshot, 0, len(Engines))
	for _, e := range Engines {
		resetsTotal.WithLabelValues(string(e), string(m.Op)).Inc()
		out = append(out, s.commit(e, m, "reset", reason))
	}
	return out
}

func (s *Session) resetEngine(e Engine) {
	switch e {
	case EngineKMeans:
		s.km.Reset()
	case EngineTree:
		s.dt.Reset()
	case EngineRegression:
		s.reg.Reset()
	}
}

// #endregion mutations

// #region step

// Step advances one engine by one phase and returns the new snapshot.
func (s *Session) Step(e Engine) (Snapshot, error) {
	snaps, err := s.Apply(Mutation{Op: OpStep, Engine: e})
	if err != nil {
		return Snapshot{}, err
	}
	return snaps[0], nil
}

func (s *Session) step(e Engine) (Snapshot, error) {
	start := time.Now()
	var (
		err    error
		reason string
	)
	switch e {
	case EngineKMeans:
		before := s.km.Phase()
		err = s.km.Step()
		reason = fmt.Sprintf("%s -> %s", before, s.km.Phase())
	case EngineTree:
		err = s.dt.Step()
		reason = "tree rebuilt"
	case EngineRegression:
		lr := s.reg.LearningRate()
		err = s.reg.StepDefault()
		reason = fmt.Sprintf("gradient step lr=%g", lr)
	}
	if err != nil {
		return Snapshot{}, err
	}
	stepDuration.WithLabelValues(string(e)).Observe(time.Since(start).Seconds())
	stepsTotal.WithLabelValues(string(e)).Inc()

	snap := s.commit(e, Mutation{Op: OpStep, Engine: e}, "commit", reason)
	observeMetrics(snap)
	s.logger.Debug("step", "engine", e, "version_id", snap.VersionID, "reason", reason)
	return snap, nil
}

// Reset discards one engine's derived state.
func (s *Session) Reset(e Engine) Snapshot {
	snaps, err := s.Apply(Mutation{Op: OpReset, Engine: e})
	if err != nil || len(snaps) == 0 {
		return s.Snapshot(e)
	}
	return snaps[0]
}

// Stepper adapts one engine to the shared step contract.
func (s *Session) Stepper(e Engine) step.Stepper {
	return step.Funcs{
		StepFn: func() error {
			_, err := s.Step(e)
			return err
		},
		ResetFn: func() { s.Reset(e) },
	}
}

// #endregion step

// #region snapshot

// Snapshot returns the current state of one engine without advancing it.
func (s *Session) Snapshot(e Engine) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(e)
}

func (s *Session) snapshot(e Engine) Snapshot {
	snap := Snapshot{
		SessionID:   s.id,
		VersionID:   s.heads[e],
		Engine:      e,
		Revision:    s.set.Revision(),
		Fingerprint: Fingerprint(s.set.Fingerprint()),
		Palette:     s.set.Palette(),
		CreatedAt:   s.now(),
		Metrics:     map[string]float64{"points": float64(s.set.Len())},
	}
	switch e {
	case EngineKMeans:
		k := s.km.Snapshot()
		snap.KMeans = &k
		snap.Metrics["inertia"] = k.State.Inertia
		snap.Metrics["iteration"] = float64(k.State.Iteration)
		snap.Metrics["k"] = float64(k.K)
	case EngineTree:
		t := s.dt.Snapshot()
		snap.Tree = &t
		snap.Metrics["accuracy"] = t.Accuracy
		snap.Metrics["depth"] = float64(t.Depth)
		snap.Metrics["leaves"] = float64(t.Leaves)
		snap.Metrics["root_entropy"] = t.RootEntropy
		snap.Metrics["root_gain"] = t.RootGain
	case EngineRegression:
		r := s.reg.Snapshot()
		snap.Regression = &r
		snap.Metrics["loss"] = r.Loss
		snap.Metrics["weight"] = r.State.Weight
		snap.Metrics["bias"] = r.State.Bias
		snap.Metrics["iteration"] = float64(r.State.Iteration)
		snap.Metrics["learning_rate"] = r.LearningRate
	}
	return snap
}

// commit stamps a new version onto the engine's snapshot chain and records it.
func (s *Session) commit(e Engine, m Mutation, decision, reason string) Snapshot {
	parent := s.heads[e]
	snap := s.snapshot(e)
	snap.VersionID = uuid.New().String()
	snap.ParentID = parent
	s.heads[e] = snap.VersionID

	if s.recorder != nil {
		err := s.recorder.Record(snap, Action{ID: s.actionID, Mutation: m, Decision: decision, Reason: reason})
		if err != nil {
			s.logger.Warn("record snapshot failed", "engine", e, "version_id", snap.VersionID, "error", err)
		}
	}
	return snap
}

func (s *Session) reject(m Mutation, cause error) {
	rejectsTotal.WithLabelValues(string(m.Op)).Inc()
	if !errors.Is(cause, step.ErrInvalidParameter) {
		s.logger.Error("mutation failed", "op", m.Op, "error", cause)
	} else {
		s.logger.Info("mutation rejected", "op", m.Op, "error", cause)
	}
	if s.recorder == nil {
		return
	}
	e := m.Engine
	if e == "" {
		e = engineFor(m.Op)
	}
	snap := s.snapshot(e)
	if err := s.recorder.Record(snap, Action{ID: s.actionID, Mutation: m, Decision: "reject", Reason: cause.Error()}); err != nil {
		s.logger.Warn("record rejection failed", "op", m.Op, "error", err)
	}
}

// engineFor names the engine a mutation primarily concerns.
func engineFor(op Op) Engine {
	switch op {
	case OpSetMaxDepth:
		return EngineTree
	case OpSetLearningRate, OpInitRegression:
		return EngineRegression
	default:
		return EngineKMeans
	}
}

// #endregion snapshot
