package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments shared across the pipeline.
// Per-store latency histograms live next to their stores; this struct covers
// the event flow itself.
type Metrics struct {
	EventsReceived   *prometheus.CounterVec
	EventsForwarded  *prometheus.CounterVec
	EventsQueued     prometheus.Counter
	QueueEvicted     prometheus.Counter
	Flushes          prometheus.Counter
	FlushBatchSize   prometheus.Histogram
	DedupSuppressed  *prometheus.CounterVec
	TokenFailures    *prometheus.CounterVec
	LadderDowngrades *prometheus.CounterVec
	ForwardLatency   prometheus.Histogram
}

// New creates and registers all pipeline metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on an explicit registerer. Tests use this
// with a fresh registry so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tagging_events_received_total",
			Help: "Events submitted by producers, labelled by gate outcome.",
		}, []string{"outcome"}),
		EventsForwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tagging_events_forwarded_total",
			Help: "Events delivered to the collection endpoint, labelled by result.",
		}, []string{"result"}),
		EventsQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "tagging_events_queued_total",
			Help: "Events held back while consent was pending.",
		}),
		QueueEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tagging_queue_evicted_total",
			Help: "Queued events dropped by TTL eviction on restore.",
		}),
		Flushes: factory.NewCounter(prometheus.CounterOpts{
			Name: "tagging_queue_flushes_total",
			Help: "Queue flushes triggered by consent resolution.",
		}),
		FlushBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tagging_queue_flush_batch_size",
			Help:    "Number of events delivered per flush.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		DedupSuppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tagging_dedup_suppressed_total",
			Help: "Conversion sends suppressed by a live dedup record.",
		}, []string{"channel"}),
		TokenFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tagging_token_failures_total",
			Help: "Token codec failures by kind.",
		}, []string{"kind"}),
		LadderDowngrades: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tagging_credential_downgrades_total",
			Help: "Credential deliveries that fell below the token rung.",
		}, []string{"rung"}),
		ForwardLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tagging_forward_latency_seconds",
			Help:    "Round-trip latency of collection endpoint sends.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveForward records one outbound send.
func (m *Metrics) ObserveForward(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.EventsForwarded.WithLabelValues(result).Inc()
	m.ForwardLatency.Observe(elapsed.Seconds())
}
