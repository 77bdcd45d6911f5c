package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the server's Prometheus instruments. Each server carries its
// own registry so that multiple instances (tests) never collide.
type metrics struct {
	registry    *prometheus.Registry
	runsTotal   prometheus.Counter
	runFailures prometheus.Counter
	runDuration prometheus.Histogram
	tagsFound   prometheus.Histogram
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &metrics{
		registry: reg,
		runsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tagscope_runs_total",
			Help: "Pipeline runs started over the API.",
		}),
		runFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tagscope_run_failures_total",
			Help: "Pipeline runs that could not complete.",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tagscope_run_duration_seconds",
			Help:    "End-to-end pipeline run duration.",
			Buckets: prometheus.DefBuckets,
		}),
		tagsFound: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tagscope_run_tags_found",
			Help:    "Tags detected per run.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
	}
}
