package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the pipeline subsystem. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	StageDuration      *prometheus.HistogramVec
	FallbacksTotal     *prometheus.CounterVec
	NotificationsTotal prometheus.Counter
	AuditFailures      prometheus.Counter
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_pipeline_runs_total",
			Help: "Total pipeline runs by result.",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guardian_pipeline_run_duration_seconds",
			Help:    "Duration of full pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s .. ~51s
		}, []string{"result"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guardian_pipeline_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"stage"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_pipeline_fallbacks_total",
			Help: "Stage fallbacks applied after an external dependency failure.",
		}, []string{"stage"}),
		NotificationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guardian_pipeline_notifications_total",
			Help: "Intervention notifications dispatched.",
		}),
		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guardian_pipeline_audit_failures_total",
			Help: "Intervention audit writes that failed (logged and swallowed).",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.StageDuration,
		m.FallbacksTotal,
		m.NotificationsTotal,
		m.AuditFailures,
	)
	return m
}

func (m *Metrics) observeRun(result string, dur time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(result).Inc()
	if dur > 0 {
		m.RunDuration.WithLabelValues(result).Observe(dur.Seconds())
	}
}

func (m *Metrics) observeStage(stage State, dur time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(string(stage)).Observe(dur.Seconds())
}

func (m *Metrics) incFallback(stage State) {
	if m == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(string(stage)).Inc()
}

func (m *Metrics) incNotification() {
	if m == nil {
		return
	}
	m.NotificationsTotal.Inc()
}

func (m *Metrics) incAuditFailure() {
	if m == nil {
		return
	}
	m.AuditFailures.Inc()
}
