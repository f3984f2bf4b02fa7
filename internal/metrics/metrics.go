// Package metrics declares the Prometheus collectors exposed on /metrics,
// renamed from the teacher's worker-pool metrics to the ezworker domain and
// extended with a rate-limiter waiters gauge and a poll-cycle counter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepthGauge tracks the current depth of the job queue.
	QueueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ezworker",
		Name:      "queue_depth",
		Help:      "Current number of jobs buffered in the job queue",
	})

	// ActiveExecutorsGauge tracks the number of executors currently running
	// a job (between pop and report).
	ActiveExecutorsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ezworker",
		Name:      "executor_active",
		Help:      "Current number of executor workers actively processing a job",
	})

	// JobsProcessedCounter tracks jobs that completed with success=true.
	JobsProcessedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ezworker",
		Name:      "jobs_processed_total",
		Help:      "Total number of jobs completed successfully",
	})

	// JobsFailedCounter tracks jobs that completed with success=false.
	JobsFailedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ezworker",
		Name:      "jobs_failed_total",
		Help:      "Total number of jobs that failed (transport error or non-2xx status)",
	})

	// PollBatchesCounter tracks completed poll cycles, labeled by whether a
	// job was enqueued.
	PollBatchesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ezworker",
		Name:      "poll_batches_total",
		Help:      "Total number of poll cycles against the coordinator",
	}, []string{"outcome"})

	// RateLimiterWaitersGauge tracks goroutines currently blocked in
	// waitForHost.
	RateLimiterWaitersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ezworker",
		Name:      "ratelimiter_waiters",
		Help:      "Current number of executor workers blocked waiting on the rate limiter",
	})
)

// RecordPollBatch increments the poll batch counter for the given outcome:
// "empty" or "enqueued".
func RecordPollBatch(jobsEnqueued int) {
	if jobsEnqueued > 0 {
		PollBatchesCounter.WithLabelValues("enqueued").Inc()
		return
	}
	PollBatchesCounter.WithLabelValues("empty").Inc()
}
