package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Total number of cart mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	cartUnits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cart_units",
			Help: "Total number of units currently in the cart",
		},
	)

	loadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_loads_total",
			Help: "Total number of stored cart loads by result",
		},
		[]string{"result"},
	)

	persistWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_persist_writes_total",
			Help: "Total number of cart persistence writes by result",
		},
		[]string{"result"},
	)

	persistDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cart_persist_duration_seconds",
			Help:    "Duration of cart persistence writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
