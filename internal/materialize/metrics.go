package materialize

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	materializations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "npm2maven",
			Subsystem: "materialize",
			Name:      "requests_total",
			Help:      "Total number of materialization requests, by outcome.",
		},
		[]string{"outcome"},
	)
	duration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "npm2maven",
			Subsystem: "materialize",
			Name:      "duration_seconds",
			Help:      "Time taken to materialize one package version.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)
