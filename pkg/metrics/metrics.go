package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Consumer metrics
	EventsProcessed    *prometheus.CounterVec
	EventsDropped      *prometheus.CounterVec
	EventsFailed       *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	AggregateMerges    prometheus.Counter
	AggregateCreates   prometheus.Counter

	// Outbox relay metrics
	RelayEventsPublished prometheus.Counter
	RelayEventsFailed    prometheus.Counter
	RelayRetries         *prometheus.CounterVec
	RelayDuration        prometheus.Histogram

	// Delivery sink metrics
	PushesDelivered prometheus.Counter
	PushesSkipped   prometheus.Counter
}

// New creates and registers all application metrics
func New(namespace string) *Metrics {
	return &Metrics{
		EventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Total number of queue events processed to completion",
		}, []string{"event_type"}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total number of malformed events dropped",
		}, []string{"reason"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of events that failed during processing",
		}, []string{"event_type"}),
		ProcessingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_processing_duration_seconds",
			Help:      "Time spent processing a single queue event",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		AggregateMerges: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_merges_total",
			Help:      "Total number of events merged into an existing unread notification",
		}),
		AggregateCreates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_creates_total",
			Help:      "Total number of notifications created",
		}),
		RelayEventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_events_published_total",
			Help:      "Total number of outbox events published to the stream",
		}),
		RelayEventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_events_failed_total",
			Help:      "Total number of outbox events that exhausted publish retries",
		}),
		RelayRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_retry_attempts_total",
			Help:      "Total number of publish retry attempts",
		}, []string{"event_type"}),
		RelayDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_batch_duration_seconds",
			Help:      "Time spent relaying a batch of outbox events",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		PushesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_delivered_total",
			Help:      "Total number of notifications pushed to a live connection",
		}),
		PushesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_skipped_total",
			Help:      "Total number of pushes skipped because no connection was registered",
		}),
	}
}
