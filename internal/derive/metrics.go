package derive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var derivations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "npm2maven",
		Subsystem: "derive",
		Name:      "sources_jars_total",
		Help:      "Total number of sources jar derivations, by result.",
	},
	[]string{"result"},
)
