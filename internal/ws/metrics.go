package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "studyshare_ws_connections",
		Help: "Number of open socket connections on this instance",
	})

	registeredIdentities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "studyshare_ws_identities",
		Help: "Number of user identities bound to a socket on this instance",
	})

	eventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studyshare_ws_events_total",
		Help: "Socket frames queued for delivery, by fan-out kind",
	}, []string{"kind"})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studyshare_ws_dropped_total",
		Help: "Socket frames that could not be delivered",
	}, []string{"reason"})

	relayErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studyshare_ws_relay_errors_total",
		Help: "Failed publishes or malformed messages on the cross-instance relay",
	})
)
