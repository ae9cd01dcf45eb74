package archive

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transcodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "npm2maven",
			Subsystem: "archive",
			Name:      "transcodes_total",
			Help:      "Total number of tarball to jar transcodes, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	transcodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "npm2maven",
			Subsystem: "archive",
			Name:      "transcode_duration_seconds",
			Help:      "Time spent transcoding one archive.",
		},
		[]string{"kind"},
	)
	entries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "npm2maven",
			Subsystem: "archive",
			Name:      "entries_total",
			Help:      "Total number of file entries copied into jars.",
		},
		[]string{"kind"},
	)
	skipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "npm2maven",
			Subsystem: "archive",
			Name:      "skipped_total",
			Help:      "Total number of file transcodes skipped because the destination existed.",
		},
		[]string{"kind"},
	)
)

func observe(kind string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	transcodes.WithLabelValues(kind, outcome).Inc()
	transcodeDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
