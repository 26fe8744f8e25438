package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cohesion",
		Subsystem: "relay",
		Name:      "active_rooms",
		Help:      "Number of rooms with at least one connected client",
	})

	activeClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cohesion",
		Subsystem: "relay",
		Name:      "active_clients",
		Help:      "Number of connected clients across all rooms",
	})

	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cohesion",
		Subsystem: "relay",
		Name:      "frames_total",
		Help:      "Inbound frames processed, by frame type",
	}, []string{"type"})

	framesMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cohesion",
		Subsystem: "relay",
		Name:      "frames_malformed_total",
		Help:      "Inbound frames dropped because they could not be parsed",
	})

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cohesion",
		Subsystem: "relay",
		Name:      "frames_dropped_total",
		Help:      "Outbound frames dropped because a client buffer was full",
	})
)
