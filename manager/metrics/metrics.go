package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TaskStartsTotal counts start attempts by execution mode and outcome.
	TaskStartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainhub_task_starts_total",
			Help: "Total number of training task start attempts",
		},
		[]string{"mode", "result"},
	)

	TaskStopsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trainhub_task_stops_total",
			Help: "Total number of training task stop requests",
		},
	)

	UploadFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainhub_upload_files_total",
			Help: "Total number of files processed by dataset uploads",
		},
		[]string{"result"},
	)

	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trainhub_upload_duration_seconds",
			Help:    "Dataset upload duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
		},
	)
)
