package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Compile result labels.
const (
	LabelCompiled = "compiled"
	LabelRejected = "rejected"
	LabelFailed   = "failed"
)

// Dispatch path labels.
const (
	LabelNative      = "native"
	LabelInterpreted = "interpreted"
	LabelWitness     = "witness"
)

// Metrics holds the optimizer's prometheus collectors.
type Metrics struct {
	WitnessRuns     prometheus.Counter
	Compiles        *prometheus.CounterVec
	Dispatch        *prometheus.CounterVec
	CompileDuration prometheus.Histogram
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	const (
		namespace = "skip"
		subsystem = "engine"
	)

	return &Metrics{
		WitnessRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "witness_runs_total",
			Help:      "Count of witness runs of the original semantics",
		}),

		Compiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "compiles_total",
			Help:      "Count of compile attempts by outcome",
		}, []string{"result"}),

		Dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_total",
			Help:      "Count of trampoline calls by the path that served them",
		}, []string{"path"}),

		CompileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "compile_duration_seconds",
			Help:      "Histogram of times spent in witness run, compile and validation",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
	}
}

// PrometheusCollectors returns all collectors for registration.
func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.WitnessRuns,
		m.Compiles,
		m.Dispatch,
		m.CompileDuration,
	}
}
