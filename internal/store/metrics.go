package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	files = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "npm2maven",
			Subsystem: "store",
			Name:      "files_total",
			Help:      "Total number of create-if-absent calls, by result.",
		},
		[]string{"result"},
	)
	mirrored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "npm2maven",
			Subsystem: "store",
			Name:      "mirrored_objects_total",
			Help:      "Total number of objects uploaded to the mirror bucket, by outcome.",
		},
		[]string{"outcome"},
	)
)
