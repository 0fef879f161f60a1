package trace

import "github.com/prometheus/client_golang/prometheus"

// namespace is the leading part of every metric published by this
// package, in the manner of tsdb/tsm1/metrics.go's "storage" namespace.
const namespace = "arrange"
const traceSubsystem = "trace"

// traceMetrics are the per-trace prometheus collectors: batch counts,
// merge activity, and inserted update counts. Each Trace builds its own
// instance, labelled by WithMetricLabels when given.
type traceMetrics struct {
	Batches         prometheus.Gauge
	MergesStarted   prometheus.Counter
	MergesCompleted prometheus.Counter
	MergeStepsSpent prometheus.Counter
	InsertedUpdates prometheus.Counter
}

func newTraceMetrics(labels prometheus.Labels) *traceMetrics {
	return &traceMetrics{
		Batches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   traceSubsystem,
			Name:        "batches",
			Help:        "Number of batches currently held by the trace.",
			ConstLabels: labels,
		}),
		MergesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   traceSubsystem,
			Name:        "merges_started_total",
			Help:        "Number of batch merges started.",
			ConstLabels: labels,
		}),
		MergesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   traceSubsystem,
			Name:        "merges_completed_total",
			Help:        "Number of batch merges completed.",
			ConstLabels: labels,
		}),
		MergeStepsSpent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   traceSubsystem,
			Name:        "merge_steps_total",
			Help:        "Amortized merge-effort steps spent across all merges.",
			ConstLabels: labels,
		}),
		InsertedUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   traceSubsystem,
			Name:        "inserted_updates_total",
			Help:        "Number of (key,val,time,diff) updates inserted into the trace.",
			ConstLabels: labels,
		}),
	}
}

// PrometheusCollectors satisfies the teacher's PrometheusCollector
// registration convention (tsdb/tsm1/metrics.go).
func (m *traceMetrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Batches, m.MergesStarted, m.MergesCompleted, m.MergeStepsSpent, m.InsertedUpdates,
	}
}
