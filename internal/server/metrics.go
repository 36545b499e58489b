package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cipherrooms_connections",
		Help: "Open WebSocket connections.",
	})
	roomsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cipherrooms_rooms",
		Help: "Rooms registered in the directory.",
	})
	membersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cipherrooms_room_members",
		Help: "Connections currently joined to a room.",
	})
	relayedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cipherrooms_relayed_frames_total",
		Help: "Frames relayed to room members, by message type.",
	}, []string{"type"})
	requestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cipherrooms_errors_total",
		Help: "Requests rejected with an error frame, by kind.",
	}, []string{"kind"})
	roomEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cipherrooms_room_evictions_total",
		Help: "Rooms removed after staying empty for the eviction delay.",
	})
	prunedConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cipherrooms_pruned_connections_total",
		Help: "Connections dropped because their send buffer was full.",
	})
)

// updateGaugesLocked refreshes the state gauges. Caller holds h.mutex.
func (h *Hub) updateGaugesLocked() {
	connectionsGauge.Set(float64(len(h.clients)))
	roomsGauge.Set(float64(h.directory.len()))
	membersGauge.Set(float64(h.members.total))
}
