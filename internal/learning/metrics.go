package learning

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for structure search.
type Metrics struct {
	IterationsTotal     prometheus.Counter // Accepted search moves
	MovesEvaluatedTotal prometheus.Counter // Candidate moves scored
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	Score               prometheus.Gauge // Score of the most recently learned structure
}

// NewMetrics creates and registers the learning metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	iterations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "riskgraph_learning_iterations_total",
		Help: "Total number of structure search moves accepted",
	})
	moves := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "riskgraph_learning_moves_evaluated_total",
		Help: "Total number of candidate structure moves scored",
	})
	hits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "riskgraph_learning_family_cache_hits_total",
		Help: "Total number of family score cache hits",
	})
	misses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "riskgraph_learning_family_cache_misses_total",
		Help: "Total number of family score cache misses",
	})
	score := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "riskgraph_learning_score",
		Help: "Score of the most recently learned structure",
	})

	reg.MustRegister(iterations, moves, hits, misses, score)

	return &Metrics{
		IterationsTotal:     iterations,
		MovesEvaluatedTotal: moves,
		CacheHitsTotal:      hits,
		CacheMissesTotal:    misses,
		Score:               score,
	}
}

// The helpers below tolerate a nil receiver so learning works without a
// registry.

func (m *Metrics) cacheHit() {
	if m != nil {
		m.CacheHitsTotal.Inc()
	}
}

func (m *Metrics) cacheMiss() {
	if m != nil {
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) iteration() {
	if m != nil {
		m.IterationsTotal.Inc()
	}
}

func (m *Metrics) evaluated(n int) {
	if m != nil {
		m.MovesEvaluatedTotal.Add(float64(n))
	}
}

func (m *Metrics) setScore(v float64) {
	if m != nil {
		m.Score.Set(v)
	}
}
