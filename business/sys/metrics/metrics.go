// Package metrics constructs the metrics the application will track.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledger"

// Metrics represents the set of metrics we gather. The values are registered
// on a private registry so more than one value can exist in a process.
type Metrics struct {
	registry *prometheus.Registry

	BlocksAppended     prometheus.Counter
	TransAppended      prometheus.Counter
	RejectedBatches    *prometheus.CounterVec
	POWTimeouts        prometheus.Counter
	MiningDuration     prometheus.Histogram
	ValidationFailures *prometheus.CounterVec
	Requests           *prometheus.CounterVec
	Errors             prometheus.Counter
	Panics             prometheus.Counter
}

// New constructs the metrics and registers them along with the Go runtime
// and process collectors.
func New() *Metrics {
	m := Metrics{
		registry: prometheus.NewRegistry(),

		BlocksAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "blocks_appended_total",
			Help:      "Number of blocks appended to the chain.",
		}),
		TransAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "transactions_appended_total",
			Help:      "Number of transactions recorded in appended blocks.",
		}),
		RejectedBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rejected_batches_total",
			Help:      "Number of transaction batches rejected before mining.",
		}, []string{"reason"}),
		POWTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pow",
			Name:      "timeouts_total",
			Help:      "Number of proof of work searches that hit the attempt ceiling.",
		}),
		MiningDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pow",
			Name:      "mining_duration_seconds",
			Help:      "Time spent mining a block.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "validation_failures_total",
			Help:      "Number of chain validations that found a violation.",
		}, []string{"reason"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of http requests handled.",
		}, []string{"method"}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Number of http requests that returned an error.",
		}),
		Panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "panics_total",
			Help:      "Number of panics recovered in http handlers.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.BlocksAppended,
		m.TransAppended,
		m.RejectedBatches,
		m.POWTimeouts,
		m.MiningDuration,
		m.ValidationFailures,
		m.Requests,
		m.Errors,
		m.Panics,
	)

	return &m
}

// RegisterChain adds a collector that reports the chain height each time
// the metrics are scraped.
func (m *Metrics) RegisterChain(length func() int) error {
	return m.registry.Register(newChainCollector(length))
}

// Handler returns the http handler that serves the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// =============================================================================

// chainCollector is a prometheus collector that reads the height of the
// chain at scrape time.
type chainCollector struct {
	length func() int
	height *prometheus.Desc
}

func newChainCollector(length func() int) *chainCollector {
	return &chainCollector{
		length: length,
		height: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "chain", "height"),
			"Number of blocks in the chain including genesis.",
			nil,
			nil,
		),
	}
}

func (c *chainCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.height
}

func (c *chainCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.height, prometheus.GaugeValue, float64(c.length()))
}
