package migration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for ingestion runs.
//
// Metrics:
//   - hangouts_conversations_discovered_total - units found in source documents
//   - hangouts_conversations_processed_total{status} - "ok" or "failed"
//   - hangouts_messages_built_total - normalized messages produced
//   - hangouts_conversations_in_flight - conversations dispatched and not yet settled
//   - hangouts_conversation_duration_seconds - per-conversation processing time
type Metrics struct {
	ConversationsDiscovered prometheus.Counter
	ConversationsProcessed  *prometheus.CounterVec
	MessagesBuilt           prometheus.Counter
	InFlight                prometheus.Gauge
	ConversationDuration    prometheus.Histogram
}

// NewMetrics creates the ingestion metrics and registers them with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConversationsDiscovered: f.NewCounter(prometheus.CounterOpts{
			Name: "hangouts_conversations_discovered_total",
			Help: "Total number of conversation units discovered in source documents",
		}),
		ConversationsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hangouts_conversations_processed_total",
			Help: "Total number of conversations processed, by outcome",
		}, []string{"status"}),
		MessagesBuilt: f.NewCounter(prometheus.CounterOpts{
			Name: "hangouts_messages_built_total",
			Help: "Total number of normalized messages produced",
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "hangouts_conversations_in_flight",
			Help: "Conversations dispatched and not yet settled",
		}),
		ConversationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hangouts_conversation_duration_seconds",
			Help:    "Time spent processing one conversation",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
}
