package jobs

import "github.com/prometheus/client_golang/prometheus"

var (
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingualab_job_runs_total",
			Help: "Total background job runs",
		},
		[]string{"job"},
	)

	jobErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingualab_job_errors_total",
			Help: "Total background job errors",
		},
		[]string{"job"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lingualab_job_duration_seconds",
			Help:    "Background job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	packagesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lingualab_packages_expired_total",
		Help: "Packages marked expired by the expiry sweep",
	})
)

func init() {
	prometheus.MustRegister(jobRuns, jobErrors, jobDuration, packagesExpired)
}
