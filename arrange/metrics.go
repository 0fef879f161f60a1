package arrange

import "github.com/prometheus/client_golang/prometheus"

// liveHandlesGauge tracks, per arrangement label set, how many consumer
// handles are currently outstanding — the reference count of spec §3
// "TraceHandle". Arrangements register lazily; callers that want
// dedicated labels should wrap Arrangement construction with their own
// gauge rather than relying on this shared default.
var liveHandlesGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "arrange",
	Subsystem: "arrangement",
	Name:      "live_handles",
	Help:      "Number of outstanding trace handles sharing an arrangement.",
}, []string{"arrangement"})

// PrometheusCollectors exposes the arrangement-level metrics for
// registration, in the manner of tsdb/tsm1/metrics.go's
// PrometheusCollectors convention.
func PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{liveHandlesGauge}
}
