package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the Redis connection lifecycle.
var (
	ConnectionOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "redis_connection_open",
			Help: "Whether the Redis connection handle is currently open (1) or closed (0).",
		})
	ConnectCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_connect_total",
			Help: "Number of explicit connect attempts that reached the network, by result.",
		},
		[]string{"result"},
	)
	DisconnectCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_disconnect_total",
			Help: "Number of explicit disconnects of an open handle, by result.",
		},
		[]string{"result"},
	)
	TransportErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_transport_errors_total",
			Help: "Number of asynchronous transport errors observed on an open connection.",
		},
		[]string{"stage"},
	)
)
