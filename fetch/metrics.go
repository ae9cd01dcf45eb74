package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	downloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "npm2maven",
			Subsystem: "fetch",
			Name:      "downloads_total",
			Help:      "Total number of tarball download attempts, by outcome.",
		},
		[]string{"outcome"},
	)
	breakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "npm2maven",
			Subsystem: "fetch",
			Name:      "breaker_rejections_total",
			Help:      "Total number of requests refused by an open circuit breaker, by host.",
		},
		[]string{"host"},
	)
	integrityFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "npm2maven",
			Subsystem: "fetch",
			Name:      "integrity_failures_total",
			Help:      "Total number of tarballs whose digest did not match the registry's.",
		},
	)
)
