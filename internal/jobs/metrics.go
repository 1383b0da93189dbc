package jobs

import "github.com/prometheus/client_golang/prometheus"

var (
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_job_runs_total",
			Help: "Total background job runs",
		},
		[]string{"job"},
	)

	jobErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_job_errors_total",
			Help: "Total background job errors",
		},
		[]string{"job"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lms_job_duration_seconds",
			Help:    "Background job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	remindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lms_invite_reminders_sent_total",
			Help: "Invitation reminders delivered",
		},
	)

	remindersFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lms_invite_reminders_failed_total",
			Help: "Invitation reminders that could not be delivered",
		},
	)
)

func init() {
	prometheus.MustRegister(jobRuns, jobErrors, jobDuration, remindersSent, remindersFailed)
}
