package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CellsOccupied tracks the number of claimed cells in the authoritative map.
	CellsOccupied = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gridwall",
			Name:      "cells_occupied",
			Help:      "Number of currently claimed cells.",
		},
	)

	// ClaimsTotal counts claim operations by outcome.
	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridwall",
			Name:      "claims_total",
			Help:      "Total claim operations.",
		},
		[]string{"outcome"},
	)

	// LikesTotal counts like operations by outcome.
	LikesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridwall",
			Name:      "likes_total",
			Help:      "Total like operations.",
		},
		[]string{"outcome"},
	)

	// SessionsConnected tracks currently connected websocket sessions.
	SessionsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gridwall",
			Name:      "sessions_connected",
			Help:      "Number of connected websocket sessions.",
		},
	)

	// SessionsEvicted counts sessions dropped because their send buffer filled.
	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridwall",
			Name:      "sessions_evicted_total",
			Help:      "Sessions dropped for not keeping up with the event stream.",
		},
	)

	// SweepRemoved counts cells removed by the expiration sweeper.
	SweepRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridwall",
			Name:      "sweep_removed_total",
			Help:      "Cells removed by the expiration sweeper.",
		},
	)

	// SweepFailures counts sweep cycles skipped due to store errors.
	SweepFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridwall",
			Name:      "sweep_failures_total",
			Help:      "Sweep cycles skipped because the durable delete failed.",
		},
	)

	// SweepDuration observes the wall time of each sweep cycle.
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gridwall",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of expiration sweep cycles.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// StoreWriteFailures counts durable writes that could not be flushed.
	StoreWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridwall",
			Name:      "store_write_failures_total",
			Help:      "Durable writes that failed or were rejected by the circuit breaker.",
		},
	)

	// StoreWriteDrops counts writes discarded because the queue was full.
	StoreWriteDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridwall",
			Name:      "store_write_drops_total",
			Help:      "Durable writes dropped because the write queue was full.",
		},
	)
)

// Outcome labels for ClaimsTotal and LikesTotal.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
)
