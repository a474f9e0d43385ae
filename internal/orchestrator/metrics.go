package orchestrator

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
)

var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topoctl_operations_total",
			Help: "Total number of topology operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	engineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "topoctl_engine_duration_seconds",
			Help:    "Time spent probing and invoking logic procedures.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	continuationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topoctl_continuations_total",
			Help: "Total number of completed continuations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	continuationQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "topoctl_continuation_queue_depth",
		Help: "Continuations waiting for a worker.",
	})

	continuationsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "topoctl_continuations_rejected_total",
		Help: "Continuations rejected because the queue was full or closed.",
	})
)

func init() {
	prometheus.MustRegister(operationsTotal, engineDuration, continuationsTotal, continuationQueueDepth, continuationsRejected)
}
