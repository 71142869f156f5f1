package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Simulation Sessions
// =============================================================================

var (
	// stepsTotal counts successful steps.
	// Labels: engine
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "algo_explorer",
		Subsystem: "session",
		Name:      "steps_total",
		Help:      "Total engine steps",
	}, []string{"engine"})

	// stepDuration measures how long a single synchronous step takes.
	// Labels: engine
	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "algo_explorer",
		Subsystem: "session",
		Name:      "step_duration_seconds",
		Help:      "Engine step latency in seconds",
		Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"engine"})

	// resetsTotal counts resets of derived state.
	// Labels: engine, op (the mutation that forced the reset)
	resetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "algo_explorer",
		Subsystem: "session",
		Name:      "resets_total",
		Help:      "Total engine resets by cause",
	}, []string{"engine", "op"})

	// rejectsTotal counts mutations and steps rejected with an error.
	// Labels: op
	rejectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "algo_explorer",
		Subsystem: "session",
		Name:      "rejects_total",
		Help:      "Total rejected mutations and steps",
	}, []string{"op"})

	// engineMetric exposes the latest per-engine metric values
	// (inertia, accuracy, loss, ...).
	// Labels: engine, metric
	engineMetric = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "algo_explorer",
		Subsystem: "session",
		Name:      "engine_metric",
		Help:      "Latest derived metric value per engine",
	}, []string{"engine", "metric"})
)

func observeMetrics(snap Snapshot) {
	for name, v := range snap.Metrics {
		engineMetric.WithLabelValues(string(snap.Engine), name).Set(v)
	}
}
