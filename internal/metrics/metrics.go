// Package metrics exposes the engine's Prometheus instruments. Everything
// hangs off an explicit Registerer so tests can use a private registry and
// the serve command can mount the default one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine's instruments. A nil *Metrics is valid and
// records nothing, so wiring is optional.
type Metrics struct {
	mutations *prometheus.CounterVec
	conflicts prometheus.Counter
	depth     prometheus.Histogram
}

// New creates and registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sps",
			Name:      "mutations_total",
			Help:      "Mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sps",
			Name:      "conflicts_total",
			Help:      "Commits aborted by optimistic concurrency conflicts.",
		}),
		depth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sps",
			Name:      "recompute_chain_depth",
			Help:      "Ancestors rederived per mutation.",
			Buckets:   prometheus.LinearBuckets(0, 1, 10),
		}),
	}
	reg.MustRegister(m.mutations, m.conflicts, m.depth)
	return m
}

// Outcome values recorded for mutations.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Mutation records one finished mutation attempt.
func (m *Metrics) Mutation(op, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
}

// Conflict records one optimistic concurrency abort.
func (m *Metrics) Conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// RecomputeDepth records how many ancestors one mutation rederived.
func (m *Metrics) RecomputeDepth(n int) {
	if m == nil {
		return
	}
	m.depth.Observe(float64(n))
}
