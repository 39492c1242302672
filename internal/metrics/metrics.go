// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsRequested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doubt_sessions_requested_total",
		Help: "Doubt sessions created by students.",
	})
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doubt_sessions_started_total",
		Help: "Doubt sessions claimed by an instructor.",
	})
	SessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doubt_sessions_completed_total",
		Help: "Doubt sessions ended.",
	})
	SessionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doubt_sessions_rejected_total",
		Help: "Doubt sessions rejected by an instructor.",
	})
	MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_messages_total",
		Help: "Messages fanned out through room relays.",
	}, []string{"type"})
	MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_dropped_total",
		Help: "Messages dropped for unknown or invalid type tags.",
	})
	RoomConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_room_connections",
		Help: "Currently connected room members.",
	})
	NotificationsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_delivered_total",
		Help: "Notification events delivered to subscribers.",
	})
	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_dropped_total",
		Help: "Notification events dropped because the user had no subscription.",
	})
)
