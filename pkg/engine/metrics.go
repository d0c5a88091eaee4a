package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for enumerations.
var (
	makoPagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mako_pages_fetched_total",
		Help: "Total pages fetched and translated by endpoint",
	}, []string{"endpoint"})

	makoPageFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mako_page_fetch_duration_seconds",
		Help:    "Page fetch duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	makoEnumerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mako_enumerations_total",
		Help: "Finished enumerations by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	makoTruncationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mako_enumeration_truncations_total",
		Help: "Enumerations ended early by an empty continuation page",
	}, []string{"endpoint"})
)

// Enumeration outcomes recorded in mako_enumerations_total.
const (
	outcomeExhausted = "exhausted"
	outcomeCancelled = "cancelled"
	outcomeTruncated = "truncated"
	outcomeError     = "error"
	outcomeClosed    = "closed"
)
