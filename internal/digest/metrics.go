package digest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var generated = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "npm2maven",
		Subsystem: "digest",
		Name:      "files_total",
		Help:      "Total number of auxiliary files generated, by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)
