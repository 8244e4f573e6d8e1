// Package metrics exposes Prometheus collectors for engine evaluations and
// optimization runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/copyleftdev/fuzzopt/internal/optimization"
)

const namespace = "fuzzopt"

// Collector groups the service metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	evaluations   *prometheus.CounterVec
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	bestValue     *prometheus.GaugeVec
	activeRuns    prometheus.Gauge
	requestErrors *prometheus.CounterVec
}

// New creates a Collector. The registry also carries the Go runtime and
// process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_evaluations_total",
			Help:      "Fuzzy engine evaluations, by engine.",
		}, []string{"engine"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizer_runs_total",
			Help:      "Finished optimizer runs, by optimizer and outcome.",
		}, []string{"optimizer", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "optimizer_run_duration_seconds",
			Help:      "Wall time of successful optimizer runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"optimizer"}),
		bestValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "optimizer_best_value",
			Help:      "Best objective value of the most recent run, by optimizer.",
		}, []string{"optimizer"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Comparison runs currently in progress.",
		}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "API requests answered with an error, by error kind.",
		}, []string{"kind"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.evaluations,
		c.runs,
		c.runDuration,
		c.bestValue,
		c.activeRuns,
		c.requestErrors,
	)
	return c
}

// Registry returns the registry the collectors are registered on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// AddEvaluations counts n evaluations of engine.
func (c *Collector) AddEvaluations(engine string, n int64) {
	if n > 0 {
		c.evaluations.WithLabelValues(engine).Add(float64(n))
	}
}

// ObserveRun records the outcome of one optimizer run.
func (c *Collector) ObserveRun(optimizer string, result *optimization.OptimizationResult, err error) {
	if err != nil {
		c.runs.WithLabelValues(optimizer, "error").Inc()
		return
	}
	c.runs.WithLabelValues(optimizer, "ok").Inc()
	if result != nil {
		c.runDuration.WithLabelValues(optimizer).Observe(result.Duration.Seconds())
		if result.BestSolution != nil {
			c.bestValue.WithLabelValues(optimizer).Set(result.BestSolution.Value)
		}
	}
}

// RunStarted increments the active run gauge and returns a func that
// decrements it and reports the elapsed time.
func (c *Collector) RunStarted() func() time.Duration {
	c.activeRuns.Inc()
	start := time.Now()
	return func() time.Duration {
		c.activeRuns.Dec()
		return time.Since(start)
	}
}

// RequestError counts an API error of the given kind.
func (c *Collector) RequestError(kind string) {
	c.requestErrors.WithLabelValues(kind).Inc()
}
