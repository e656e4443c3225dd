package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoutingQueries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rally_routing_queries_total",
		Help: "Total number of routing provider queries issued.",
	})

	RoutingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rally_routing_failures_total",
		Help: "Total number of routing queries that returned no estimate.",
	})

	ArrivalsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rally_arrivals_recorded_total",
		Help: "Total number of first-time arrival records written.",
	})

	SweepsRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rally_sweeps_total",
		Help: "Total number of background sweep passes over today's events.",
	})

	AggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rally_aggregation_duration_ms",
		Help:    "Per-event aggregation pass latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})
)
