package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	collectedEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "macfinder",
		Subsystem: "collector",
		Name:      "entries_total",
		Help:      "Forwarding entries collected, by switch vendor.",
	}, []string{"vendor"})

	hostFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "macfinder",
		Subsystem: "collector",
		Name:      "host_failures_total",
		Help:      "Hosts skipped or failed during collection, by reason.",
	}, []string{"reason"})

	lastRunHosts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "macfinder",
		Subsystem: "collector",
		Name:      "last_run_hosts",
		Help:      "Hosts collected successfully in the most recent run.",
	})
)
