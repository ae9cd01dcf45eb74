package deps

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var translations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "npm2maven",
		Subsystem: "deps",
		Name:      "translations_total",
		Help:      "Total number of dependency entries translated, by outcome.",
	},
	[]string{"outcome"},
)
