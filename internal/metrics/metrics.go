package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_import_jobs_total",
			Help: "Import jobs that reached a terminal status, by record type and status",
		},
		[]string{"record_type", "status"},
	)

	rowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_import_rows_total",
			Help: "Data rows processed, by record type and outcome",
		},
		[]string{"record_type", "outcome"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_import_row_rejections_total",
			Help: "Rejected rows by error kind",
		},
		[]string{"kind"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finsight_import_job_duration_seconds",
			Help:    "Wall time of an import invocation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"record_type"},
	)

	staleJobsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "finsight_import_stale_jobs_failed_total",
			Help: "Jobs moved from processing to failed by the watchdog",
		},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal, rowsTotal, rejectionsTotal, jobDuration, staleJobsFailed)
}

// ObserveJob records a finished import invocation.
func ObserveJob(recordType, status string, okRows, errorRows int, elapsed time.Duration) {
	jobsTotal.WithLabelValues(recordType, status).Inc()
	rowsTotal.WithLabelValues(recordType, "ok").Add(float64(okRows))
	rowsTotal.WithLabelValues(recordType, "error").Add(float64(errorRows))
	jobDuration.WithLabelValues(recordType).Observe(elapsed.Seconds())
}

// ObserveRejection counts one rejected row.
func ObserveRejection(kind string) {
	rejectionsTotal.WithLabelValues(kind).Inc()
}

// ObserveStaleJobs counts watchdog reconciliations.
func ObserveStaleJobs(n int) {
	staleJobsFailed.Add(float64(n))
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
