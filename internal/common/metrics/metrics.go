// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ReviewOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_operations_total",
			Help: "Review operations by outcome (success or error code)",
		},
		[]string{"operation", "outcome"},
	)

	ReviewOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review_operation_duration_seconds",
			Help:    "Duration of review operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ReviewNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_notifications_total",
			Help: "Notifications sent by review operations",
		},
		[]string{"type", "outcome"},
	)

	PdfPreviewRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_pdf_preview_requests_total",
			Help: "PDF preview messages published after stage confirmation",
		},
		[]string{"outcome"},
	)
)
