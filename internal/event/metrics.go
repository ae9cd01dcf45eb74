package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var published = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "npm2maven",
		Subsystem: "event",
		Name:      "published_total",
		Help:      "Total number of written-file events published.",
	},
)
