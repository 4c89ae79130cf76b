// Package realtime implements the WebSocket side of the coordinator: the
// session registry that fans events out to connected actors, and the
// per-session loop that decodes frames and dispatches them.
//
// This file exposes Prometheus instrumentation for sessions, groups,
// broadcasts and inbound frames. Label values are drawn from closed sets
// (event types, action names, outcomes) so cardinality stays bounded.
package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_sessions_active",
			Help: "Current number of registered WebSocket sessions.",
		},
	)

	groupsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_groups_active",
			Help: "Current number of actor groups with at least one session.",
		},
	)

	broadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_broadcasts_total",
			Help: "Total number of group broadcasts by event type.",
		},
		[]string{"event"},
	)

	// broadcastDropped counts per-session deliveries that failed because the
	// session was closing or its send buffer was full.
	broadcastDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_broadcast_dropped_total",
			Help: "Total number of event deliveries dropped by event type.",
		},
		[]string{"event"},
	)

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_total",
			Help: "Total number of inbound frames by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(sessionsActive, groupsActive, broadcastsTotal, broadcastDropped, framesTotal)
}

// actionLabel keeps unknown client-supplied action names out of label values.
func actionLabel(action string) string {
	switch action {
	case ActionNearbyShops, ActionRequestService, ActionRespondService, ActionGetResponses:
		return action
	default:
		return "unknown"
	}
}
