package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	quotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fare_quotes_total",
		Help: "Fare quote requests grouped by service type and result.",
	}, []string{"service_type", "result"})

	quoteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fare_quote_duration_seconds",
		Help:    "End-to-end quote latency including route and zone lookups.",
		Buckets: prometheus.DefBuckets,
	})
)
