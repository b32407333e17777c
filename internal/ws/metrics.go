package ws

import "github.com/prometheus/client_golang/prometheus"

var (
	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_subscribers",
			Help: "Connected live-query subscribers",
		},
	)
	Broadcasts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_broadcasts_total",
			Help: "Todo list snapshots broadcast to subscribers",
		},
	)
	DroppedClients = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_dropped_clients_total",
			Help: "Subscribers disconnected because their send buffer was full",
		},
	)
)

func init() {
	prometheus.MustRegister(Subscribers)
	prometheus.MustRegister(Broadcasts)
	prometheus.MustRegister(DroppedClients)
}
