package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionPhases tracks how many times each connection phase
	// completes, split by outcome.
	ConnectionPhases = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "phase_total",
			Help:      "Total number of connection phases completed",
		},
		[]string{"phase", "role", "status"}, // connection-state name after the phase or "connect", requester/responder, success/failure
	)

	// ConnectionErrors tracks negotiation and validation failures by kind.
	ConnectionErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "errors_total",
			Help:      "Total number of connection-phase errors by kind",
		},
		[]string{"phase", "error_kind"}, // e.g. version_mismatch, no_common_algorithm, unexpected_request, decode_error
	)

	// ConnectionDuration tracks how long each connection phase takes.
	ConnectionDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "phase_duration_seconds",
			Help:      "Connection phase duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
		},
		[]string{"phase", "role"},
	)

	// ResponseStateTransitions tracks Busy/NeedResync/ProcessingEncap/NotReady gating.
	ResponseStateTransitions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "response_state_transitions_total",
			Help:      "Total number of response-state transitions",
		},
		[]string{"state"}, // busy, need_resync, processing_encap, not_ready_deferred
	)
)
