package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Ingestion pipeline Prometheus metrics.
var (
	DispatchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mmdex",
			Name:      "dispatch_items_total",
			Help:      "Submitted documents by dispatch outcome",
		},
		[]string{"status"}, // "queued" / "invalid" / "queue_error"
	)

	IngestMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mmdex",
			Name:      "ingest_messages_total",
			Help:      "Ingestion messages by worker outcome",
		},
		[]string{"outcome"},
	)

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mmdex",
			Name:      "ingest_duration_seconds",
			Help:      "Time to process one ingestion message",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ImageFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mmdex",
			Name:      "image_fetch_total",
			Help:      "Remote image probes and downloads",
		},
		[]string{"method", "status"}, // method "HEAD"/"GET"; status "ok"/"rejected"/"error"
	)

	StagingOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mmdex",
			Name:      "staging_operations_total",
			Help:      "Blob staging operations",
		},
		[]string{"op", "status"}, // op "stage"/"unstage"
	)
)

var pipelineOnce sync.Once

// RegisterPipelineMetrics registers ingestion pipeline metrics. Safe to call more than once.
func RegisterPipelineMetrics() {
	pipelineOnce.Do(func() {
		prometheus.MustRegister(
			DispatchItemsTotal,
			IngestMessagesTotal,
			IngestDuration,
			ImageFetchTotal,
			StagingOperationsTotal,
		)
	})
}

// StatusLabel maps an error to the "ok"/"error" label pair used across counters.
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
