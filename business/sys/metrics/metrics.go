// Package metrics maintains the prometheus collectors for the node. The
// importer outcomes and the web requests are both recorded here.
package metrics

import (
	"strconv"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/chain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chaintraits"

// Metrics represents the set of collectors the node exposes. It implements
// the chain Observer interface.
type Metrics struct {
	height    prometheus.Gauge
	accepted  prometheus.Counter
	rejected  *prometheus.CounterVec
	requests  *prometheus.CounterVec
	errors    prometheus.Counter
	panics    prometheus.Counter
	latencies *prometheus.HistogramVec
}

// New constructs the collectors and registers them with the registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := Metrics{
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "height",
			Help:      "Number of the latest block enacted.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "blocks_accepted_total",
			Help:      "Total number of blocks enacted.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "blocks_rejected_total",
			Help:      "Total number of blocks rejected by pipeline phase.",
		}, []string{"phase"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests.",
		}, []string{"method", "status"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Total number of API requests that returned an error.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "panics_total",
			Help:      "Total number of API requests that panicked.",
		}),
		latencies: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method"}),
	}

	collectors := []prometheus.Collector{m.height, m.accepted, m.rejected, m.requests, m.errors, m.panics, m.latencies}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &m, nil
}

// Accepted implements the chain Observer interface.
func (m *Metrics) Accepted(number uint64) {
	m.accepted.Inc()
	m.height.Set(float64(number))
}

// Rejected implements the chain Observer interface.
func (m *Metrics) Rejected(phase chain.Phase, err error) {
	m.rejected.WithLabelValues(phase.String()).Inc()
}

// Request records a completed API request.
func (m *Metrics) Request(method string, status int, seconds float64) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.latencies.WithLabelValues(method).Observe(seconds)
}

// Error records an API request that returned an error.
func (m *Metrics) Error() {
	m.errors.Inc()
}

// Panic records an API request that panicked.
func (m *Metrics) Panic() {
	m.panics.Inc()
}
