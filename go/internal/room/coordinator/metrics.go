package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionsProcessed counts actions by kind and result (applied|rejected|malformed).
	ActionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimate_actions_total",
			Help: "Total number of room actions processed",
		},
		[]string{"kind", "result"},
	)

	// ActiveRooms tracks rooms with a running actor.
	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "estimate_active_rooms",
			Help: "Number of rooms loaded in memory",
		},
	)

	// ConnectedObservers tracks observers registered across all rooms.
	ConnectedObservers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "estimate_connected_observers",
			Help: "Number of observers connected to rooms",
		},
	)

	// RoomsDestroyed counts destroyed rooms by reason (ended|idle).
	RoomsDestroyed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimate_rooms_destroyed_total",
			Help: "Total number of rooms destroyed by the alarm",
		},
		[]string{"reason"},
	)

	// BroadcastBytes measures the size of projections sent to observers.
	BroadcastBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "estimate_broadcast_bytes",
			Help:    "Size of state frames sent to observers",
			Buckets: prometheus.ExponentialBuckets(256, 2, 10),
		},
	)
)
