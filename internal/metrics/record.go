package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsProcessed tracks record-layer AEAD operations.
	RecordsProcessed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "record",
			Name:      "processed_total",
			Help:      "Total number of record-layer messages processed",
		},
		[]string{"direction", "status"}, // encrypt/decrypt, success/failure
	)

	// SequenceNumberExhaustions counts sequence-number exhaustion events.
	// The session record layer does not bound its sequence numbers, so no
	// code in this module increments it.
	SequenceNumberExhaustions = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "record",
			Name:      "sequence_exhausted_total",
			Help:      "Total number of sequence-number exhaustion events",
		},
	)

	// RecordProcessingDuration tracks AEAD seal/open latency.
	RecordProcessingDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "record",
			Name:      "processing_duration_seconds",
			Help:      "Record-layer seal/open duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
	)

	// RecordSize tracks plaintext application-data record sizes.
	RecordSize = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "record",
			Name:      "size_bytes",
			Help:      "Record-layer application-data size in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		},
	)
)
