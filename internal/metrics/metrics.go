// Package metrics exposes the pipeline's Prometheus collectors: queue
// depth and drops per sink, batch dispatch latency, circuit breaker
// state, retry attempts, and per-sink health.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logpipeline_records_submitted_total",
			Help: "Total number of log records submitted to the pipeline, by level.",
		},
		[]string{"level"},
	)

	RecordsSampledOutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logpipeline_records_sampled_out_total",
			Help: "Total number of debug/info records dropped by sampling before reaching any sink.",
		},
		[]string{"level"},
	)

	SinkQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "logpipeline_sink_queue_depth",
			Help: "Current number of records buffered in a sink's batch manager queue.",
		},
		[]string{"sink"},
	)

	SinkDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logpipeline_sink_dropped_total",
			Help: "Total number of records dropped for a sink due to a full queue.",
		},
		[]string{"sink"},
	)

	SinkDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logpipeline_sink_dispatched_total",
			Help: "Total number of batches successfully dispatched to a sink.",
		},
		[]string{"sink"},
	)

	SinkDispatchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logpipeline_sink_dispatch_errors_total",
			Help: "Total number of batch dispatch attempts that ultimately failed for a sink.",
		},
		[]string{"sink"},
	)

	BatchDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logpipeline_batch_dispatch_duration_seconds",
			Help:    "Time spent delivering one batch to a sink, including retries.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)

	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logpipeline_retry_attempts_total",
			Help: "Total number of delivery attempts (first try and retries) made against a sink.",
		},
		[]string{"sink"},
	)

	// CircuitBreakerState reports 0=closed, 1=open, 2=half-open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "logpipeline_circuit_breaker_state",
			Help: "Current circuit breaker state per sink (0=closed, 1=open, 2=half-open).",
		},
		[]string{"sink"},
	)

	CircuitBreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logpipeline_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions per sink.",
		},
		[]string{"sink", "from", "to"},
	)

	SinkHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "logpipeline_sink_healthy",
			Help: "Whether the last batch dispatch to a sink succeeded (1) or failed (0).",
		},
		[]string{"sink"},
	)

	SinkStateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "logpipeline_sink_state",
			Help: "Current lifecycle state per sink (0=initializing,1=ready,2=degraded,3=closing,4=closed).",
		},
		[]string{"sink"},
	)

	ShutdownDroppedRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "logpipeline_shutdown_dropped_records",
		Help: "Number of records still queued across sinks when the shutdown deadline elapsed.",
	})

	FallbackEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logpipeline_fallback_emitted_total",
		Help: "Total number of emergency stderr fallback lines emitted when every sink is unavailable.",
	})

	ProcessCPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "logpipeline_process_cpu_percent",
		Help: "Process CPU utilization percentage, sampled when performance.collectCpuUsage is enabled.",
	})

	ProcessMemoryRSSBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "logpipeline_process_memory_rss_bytes",
		Help: "Process resident set size in bytes, sampled when performance.collectMemoryUsage is enabled.",
	})
)

var registerOnce sync.Once

// Register is idempotent; promauto already registers each collector with
// the default registry at package-init time, but callers that build their
// own registry (tests, alternate /metrics mounts) can call this to make
// that intent explicit without double-registering on the default one.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {})
	collectors := []prometheus.Collector{
		RecordsSubmittedTotal, RecordsSampledOutTotal,
		SinkQueueDepth, SinkDroppedTotal, SinkDispatchedTotal, SinkDispatchErrorsTotal,
		BatchDispatchDuration, RetryAttemptsTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		SinkHealthy, SinkStateGauge,
	}
	for _, c := range collectors {
		_ = reg.Register(c)
	}
}

func breakerStateValue(state int) float64 { return float64(state) }

// SetCircuitBreakerState records the numeric breaker state for a sink,
// using the same 0/1/2 encoding as pkg/circuit.State's iota order.
func SetCircuitBreakerState(sink string, state int) {
	CircuitBreakerState.WithLabelValues(sink).Set(breakerStateValue(state))
}

var sinkStateValues = map[string]float64{
	"initializing": 0,
	"ready":        1,
	"degraded":     2,
	"closing":      3,
	"closed":       4,
}

// SetSinkStateGauge records a route's lifecycle state by name, using the
// same encoding documented on the SinkStateGauge collector.
func SetSinkStateGauge(sink string, state string) {
	v, ok := sinkStateValues[state]
	if !ok {
		v = 0
	}
	SinkStateGauge.WithLabelValues(sink).Set(v)
}
