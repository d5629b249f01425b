package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hyqf98/trainhub/task"
)

// TaskLister is the read capability the status collector scrapes.
type TaskLister interface {
	GetAll() []task.Task
}

// statusCollector reports the number of tasks per status at scrape time,
// so the gauge never drifts from the store.
type statusCollector struct {
	lister TaskLister
	desc   *prometheus.Desc
}

// RegisterTaskStatuses installs the per-status task gauge. Call once at
// startup.
func RegisterTaskStatuses(lister TaskLister) {
	prometheus.MustRegister(&statusCollector{
		lister: lister,
		desc: prometheus.NewDesc(
			"trainhub_tasks",
			"Number of training tasks per status",
			[]string{"status"},
			nil,
		),
	})
}

func (c *statusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *statusCollector) Collect(ch chan<- prometheus.Metric) {
	counts := make(map[string]int)
	for _, t := range c.lister.GetAll() {
		counts[t.Status.String()]++
	}

	for status, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), status)
	}
}
