package evaluation

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for policy evaluation.
type Metrics struct {
	RowsTotal      *prometheus.CounterVec // by status: evaluated, skipped
	DecisionsTotal *prometheus.CounterVec // by chosen action
	UtilityTotal   prometheus.Gauge       // Realized utility of the last session
	RowDuration    prometheus.Histogram
}

// NewMetrics creates and registers the evaluation metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "riskgraph_evaluation_rows_total",
		Help: "Total number of dataset rows processed by the policy evaluator",
	}, []string{"status"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "riskgraph_evaluation_decisions_total",
		Help: "Total number of optimal decisions by chosen action",
	}, []string{"action"})
	utility := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "riskgraph_evaluation_utility_total",
		Help: "Total realized utility of the most recent evaluation",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskgraph_evaluation_row_duration_seconds",
		Help:    "Time spent solving the decision for one row",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	reg.MustRegister(rows, decisions, utility, duration)

	return &Metrics{
		RowsTotal:      rows,
		DecisionsTotal: decisions,
		UtilityTotal:   utility,
		RowDuration:    duration,
	}
}

func (m *Metrics) observe(r *rowResult) {
	if m == nil {
		return
	}
	m.RowDuration.Observe(r.elapsed.Seconds())
	if r.err != nil {
		m.RowsTotal.WithLabelValues("skipped").Inc()
		return
	}
	m.RowsTotal.WithLabelValues("evaluated").Inc()
	m.DecisionsTotal.WithLabelValues(r.action).Inc()
}

func (m *Metrics) finish(s *Session) {
	if m != nil {
		m.UtilityTotal.Set(s.Total)
	}
}
