// Package metrics exposes Prometheus instrumentation for the sync
// orchestration pipeline. Collectors register once against the default
// registry and are scraped through the /metrics endpoint.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storepulse",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)

	jobsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storepulse",
			Name:      "queue_jobs_enqueued_total",
			Help:      "Jobs accepted by the queue, by type.",
		},
		[]string{"type"},
	)

	jobsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storepulse",
			Name:      "queue_jobs_completed_total",
			Help:      "Jobs finished by the worker pool, by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	jobsRetried = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storepulse",
			Name:      "queue_jobs_retried_total",
			Help:      "Retry attempts scheduled after handler failures, by type.",
		},
		[]string{"type"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storepulse",
			Name:      "queue_job_duration_seconds",
			Help:      "Handler execution time, by type.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storepulse",
			Name:      "queue_depth",
			Help:      "Jobs waiting for a worker slot.",
		},
	)

	rateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storepulse",
			Name:      "ratelimit_rejections_total",
			Help:      "Acquisitions rejected for lack of window capacity, by platform.",
		},
		[]string{"platform"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			jobsEnqueued,
			jobsCompleted,
			jobsRetried,
			jobDuration,
			queueDepth,
			rateLimitRejections,
		)
	})
}

// IncHTTP increments the request counter for one handled request.
func IncHTTP(method, path, status string) {
	httpRequests.WithLabelValues(method, path, status).Inc()
}

// IncJobEnqueued records a job accepted by the queue.
func IncJobEnqueued(jobType string) {
	jobsEnqueued.WithLabelValues(jobType).Inc()
}

// IncJobCompleted records a finished job. Outcome is "success" or "failed".
func IncJobCompleted(jobType, outcome string) {
	jobsCompleted.WithLabelValues(jobType, outcome).Inc()
}

// IncJobRetried records a scheduled retry.
func IncJobRetried(jobType string) {
	jobsRetried.WithLabelValues(jobType).Inc()
}

// ObserveJobDuration records how long a handler ran.
func ObserveJobDuration(jobType string, d time.Duration) {
	jobDuration.WithLabelValues(jobType).Observe(d.Seconds())
}

// SetQueueDepth reports the number of jobs waiting for a worker.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// IncRateLimitRejection records a backpressure decision for a platform.
func IncRateLimitRejection(platform string) {
	rateLimitRejections.WithLabelValues(platform).Inc()
}
