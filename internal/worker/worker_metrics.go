package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the worker pool. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	TasksTotal      *prometheus.CounterVec
	TaskDuration    *prometheus.HistogramVec
	DequeueFailures prometheus.Counter
}

// NewMetrics registers and returns worker metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_worker_tasks_total",
			Help: "Investigation tasks consumed, by result.",
		}, []string{"result"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guardian_worker_task_duration_seconds",
			Help:    "Time spent processing one investigation task.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~40s
		}, []string{"result"}),
		DequeueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guardian_worker_dequeue_failures_total",
			Help: "Transient queue dequeue failures.",
		}),
	}

	reg.MustRegister(
		m.TasksTotal,
		m.TaskDuration,
		m.DequeueFailures,
	)
	return m
}

func (m *Metrics) observeTask(result string, dur time.Duration) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(result).Inc()
	m.TaskDuration.WithLabelValues(result).Observe(dur.Seconds())
}

func (m *Metrics) incDequeueFailure() {
	if m == nil {
		return
	}
	m.DequeueFailures.Inc()
}
