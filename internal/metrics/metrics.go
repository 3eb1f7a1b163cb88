// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ItemOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pressflow_item_outcomes_total",
		Help: "Queue item outcomes per executor pass.",
	}, []string{"outcome"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pressflow_run_duration_seconds",
		Help:    "Duration of executor passes.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	ScheduleFires = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pressflow_schedule_fires_total",
		Help: "Recurring schedules fired into the queue.",
	})
)

// Handler serves the scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }
