package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the report pipeline
type Metrics struct {
	PublishCounter    *prometheus.CounterVec
	ConsumeCounter    *prometheus.CounterVec
	ConsumeDuration   *prometheus.HistogramVec
	PollCycles        prometheus.Counter
	PollDuration      prometheus.Histogram
	EventsProcessed   prometheus.Counter
	NotificationsSent prometheus.Counter
	ReconnectAttempts prometheus.Counter
	ConnectedSockets  prometheus.Gauge
}

// NewMetrics creates a new metrics instance
func NewMetrics(serviceName string) *Metrics {
	return &Metrics{
		PublishCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sentria",
				Subsystem: serviceName,
				Name:      "broker_publishes_total",
				Help:      "Total broker publish attempts by queue and outcome",
			},
			[]string{"queue", "outcome"}, // outcome: confirmed, nacked, failed
		),
		ConsumeCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sentria",
				Subsystem: serviceName,
				Name:      "broker_deliveries_total",
				Help:      "Total consumed deliveries by queue and verdict",
			},
			[]string{"queue", "verdict"}, // verdict: ack, nack_discard
		),
		ConsumeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sentria",
				Subsystem: serviceName,
				Name:      "consume_duration_seconds",
				Help:      "Message handling duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"queue"},
		),
		PollCycles: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sentria",
				Subsystem: serviceName,
				Name:      "poll_cycles_total",
				Help:      "Total earthquake feed polling cycles",
			},
		),
		PollDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "sentria",
				Subsystem: serviceName,
				Name:      "poll_cycle_duration_seconds",
				Help:      "Polling cycle duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		EventsProcessed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sentria",
				Subsystem: serviceName,
				Name:      "feed_events_processed_total",
				Help:      "Total new feed events processed (after dedup)",
			},
		),
		NotificationsSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sentria",
				Subsystem: serviceName,
				Name:      "notification_jobs_published_total",
				Help:      "Total notification jobs published during fan-out",
			},
		),
		ReconnectAttempts: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sentria",
				Subsystem: serviceName,
				Name:      "broker_reconnect_attempts_total",
				Help:      "Total broker reconnect attempts",
			},
		),
		ConnectedSockets: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sentria",
				Subsystem: serviceName,
				Name:      "connected_sockets",
				Help:      "Number of currently connected websocket clients",
			},
		),
	}
}

// ObserveConsume records a handled delivery with its duration
func (m *Metrics) ObserveConsume(queue, verdict string, start time.Time) {
	m.ConsumeCounter.WithLabelValues(queue, verdict).Inc()
	m.ConsumeDuration.WithLabelValues(queue).Observe(time.Since(start).Seconds())
}
