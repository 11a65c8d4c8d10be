package trigger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the trigger subsystem. A nil *Metrics
// is valid and records nothing, which keeps tests free of registries.
type Metrics struct {
	EvaluationsTotal       *prometheus.CounterVec
	EvaluationDuration     *prometheus.HistogramVec
	HardReasonsTotal       *prometheus.CounterVec
	SoftTriggersTotal      *prometheus.CounterVec
	GapCheckFailures       prometheus.Counter
	ActivityCheckFailures  prometheus.Counter
	PersistFailures        prometheus.Counter
	AlertDispatchFailures  prometheus.Counter
	EnqueueFailures        prometheus.Counter
	WindowUsers            prometheus.GaugeFunc
}

// NewMetrics registers and returns trigger metrics on the given registerer.
// windows may be nil when window gauge reporting is not wanted.
func NewMetrics(reg prometheus.Registerer, windows *Windows) *Metrics {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_trigger_evaluations_total",
			Help: "Total trigger evaluations by outcome.",
		}, []string{"outcome"}),
		EvaluationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guardian_trigger_evaluation_duration_seconds",
			Help:    "Duration of full trigger evaluation per event.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}, []string{"outcome"}),
		HardReasonsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_trigger_hard_reasons_total",
			Help: "Hard trigger conditions fired, by reason.",
		}, []string{"reason"}),
		SoftTriggersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_trigger_soft_total",
			Help: "Soft triggers fired, by trigger type.",
		}, []string{"type"}),
		GapCheckFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guardian_trigger_gap_check_failures_total",
			Help: "Best-effort telemetry gap queries that failed.",
		}),
		ActivityCheckFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guardian_trigger_activity_check_failures_total",
			Help: "Weekly pattern lookups that failed during soft evaluation.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guardian_trigger_persist_failures_total",
			Help: "Telemetry persistence failures (logged and swallowed).",
		}),
		AlertDispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guardian_trigger_alert_failures_total",
			Help: "Emergency alert dispatch failures.",
		}),
		EnqueueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guardian_trigger_enqueue_failures_total",
			Help: "Investigation task enqueue failures.",
		}),
	}

	if windows != nil {
		m.WindowUsers = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "guardian_trigger_window_users",
			Help: "Distinct users currently holding a sliding window.",
		}, func() float64 { return float64(windows.Users()) })
		reg.MustRegister(m.WindowUsers)
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.EvaluationDuration,
		m.HardReasonsTotal,
		m.SoftTriggersTotal,
		m.GapCheckFailures,
		m.ActivityCheckFailures,
		m.PersistFailures,
		m.AlertDispatchFailures,
		m.EnqueueFailures,
	)
	return m
}

func (m *Metrics) observeEvaluation(outcome OutcomeKind, dur time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(string(outcome)).Inc()
	m.EvaluationDuration.WithLabelValues(string(outcome)).Observe(dur.Seconds())
}

func (m *Metrics) incHardReason(reason string) {
	if m == nil {
		return
	}
	m.HardReasonsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) incSoftTrigger(triggerType string) {
	if m == nil {
		return
	}
	m.SoftTriggersTotal.WithLabelValues(triggerType).Inc()
}

func (m *Metrics) incGapCheckFailure() {
	if m == nil {
		return
	}
	m.GapCheckFailures.Inc()
}

func (m *Metrics) incActivityCheckFailure() {
	if m == nil {
		return
	}
	m.ActivityCheckFailures.Inc()
}

func (m *Metrics) incPersistFailure() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

func (m *Metrics) incAlertFailure() {
	if m == nil {
		return
	}
	m.AlertDispatchFailures.Inc()
}

func (m *Metrics) incEnqueueFailure() {
	if m == nil {
		return
	}
	m.EnqueueFailures.Inc()
}
