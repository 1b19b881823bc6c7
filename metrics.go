package beacon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue labels used on every metric.
const (
	queueEvents = "events"
	queueLogs   = "logs"
)

type metrics struct {
	enqueued   *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	depth      *prometheus.GaugeVec
	failures   *prometheus.GaugeVec
}

// newMetrics creates the client's collectors on reg. A nil reg leaves
// them unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		enqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_records_enqueued_total",
				Help: "Total number of records accepted into a queue",
			},
			[]string{"queue"},
		),
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_deliveries_total",
				Help: "Total number of delivery attempts by outcome",
			},
			[]string{"queue", "outcome"},
		),
		depth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "beacon_queue_depth",
				Help: "Current number of records waiting for delivery",
			},
			[]string{"queue"},
		),
		failures: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "beacon_delivery_failures",
				Help: "Consecutive transient delivery failures",
			},
			[]string{"queue"},
		),
	}
}
