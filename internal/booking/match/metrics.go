package match

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_outcomes_total",
		Help: "Settled driver searches grouped by outcome.",
	}, []string{"outcome"})

	watcherReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_watcher_reports_total",
		Help: "Watcher assignment reports grouped by source and verdict.",
	}, []string{"source", "verdict"})

	activeSearches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "match_active_searches",
		Help: "Driver searches currently in flight.",
	})

	timeToAssign = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "match_time_to_assign_seconds",
		Help:    "Time from search start to driver assignment.",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 90, 120},
	})
)
