package planner

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the planner's prometheus instrumentation, the reference
// pack's own observability library (stats/target_stats.go uses the same
// client_golang/prometheus dependency for its counters).
type Metrics struct {
	QueriesTotal       *prometheus.CounterVec
	PartitionsReadTotal prometheus.Counter
	PartitionsSkippedTotal prometheus.Counter
	QueryDuration      *prometheus.HistogramVec
	MalformedChains    prometheus.Counter
}

// NewMetrics registers the planner's collectors against reg. Passing a
// fresh prometheus.NewRegistry() keeps test suites from colliding on the
// default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webindex",
			Subsystem: "planner",
			Name:      "queries_total",
			Help:      "Queries executed, by kind.",
		}, []string{"kind"}),
		PartitionsReadTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webindex",
			Subsystem: "planner",
			Name:      "partitions_read_total",
			Help:      "Partitions actually read from the object store.",
		}),
		PartitionsSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webindex",
			Subsystem: "planner",
			Name:      "partitions_skipped_total",
			Help:      "Partitions skipped due to a negative presence-cache lookup.",
		}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "webindex",
			Subsystem: "planner",
			Name:      "query_duration_seconds",
			Help:      "Latency of a single query within a batch, by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		MalformedChains: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webindex",
			Subsystem: "planner",
			Name:      "malformed_chains_total",
			Help:      "Chains rejected for violating D1 on read.",
		}),
	}
	reg.MustRegister(m.QueriesTotal, m.PartitionsReadTotal, m.PartitionsSkippedTotal, m.QueryDuration, m.MalformedChains)
	return m
}

func (m *Metrics) observeQuery(kind Kind, seconds float64) {
	m.QueriesTotal.WithLabelValues(string(kind)).Inc()
	m.QueryDuration.WithLabelValues(string(kind)).Observe(seconds)
}
