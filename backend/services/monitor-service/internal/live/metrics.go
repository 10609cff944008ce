package live

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/juandiegombr/daw.pi.iiava/backend/libs/metrics"
)

var (
	subscribersGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "monitor",
			Subsystem: "live",
			Name:      "subscribers",
			Help:      "Connected live channel subscribers by transport",
		},
		[]string{"transport"},
	)

	publishedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monitor",
			Subsystem: "live",
			Name:      "events_published_total",
			Help:      "Events published to the live channel by type",
		},
		[]string{"event"},
	)

	droppedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monitor",
			Subsystem: "live",
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber buffer was full",
		},
		[]string{"transport"},
	)
)

func init() {
	metrics.MustRegister(subscribersGauge, publishedCounter, droppedCounter)
}
