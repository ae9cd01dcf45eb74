package npm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "npm2maven",
			Subsystem: "npm",
			Name:      "registry_requests_total",
			Help:      "Total number of npm registry document requests, by outcome.",
		},
		[]string{"outcome"},
	)

	latestLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "npm2maven",
			Subsystem: "npm",
			Name:      "latest_lookups_total",
			Help:      "Total number of latest-version lookups, by cache result.",
		},
		[]string{"cache"},
	)
)
