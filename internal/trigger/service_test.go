package trigger

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/guardian/internal/telemetry"
)

type mockProfileStore struct {
	year int
	ok   bool
	err  error
}

func (m *mockProfileStore) BirthYear(_ context.Context, _ string) (int, bool, error) {
	return m.year, m.ok, m.err
}

type mockAlertSender struct {
	mu      sync.Mutex
	calls   int
	lastMsg string
	err     error
}

func (m *mockAlertSender) SendEmergencyAlert(_ context.Context, _ string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastMsg = reason
	return m.err
}

type mockQueue struct {
	mu    sync.Mutex
	tasks []*telemetry.InvestigationTask
	err   error
}

func (m *mockQueue) Enqueue(_ context.Context, task *telemetry.InvestigationTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.tasks = append(m.tasks, task)
	return nil
}

type serviceDeps struct {
	telemetry *mockTelemetryStore
	patterns  *mockPatternStore
	profiles  *mockProfileStore
	alerts    *mockAlertSender
	queue     *mockQueue
}

func newTestService(d *serviceDeps) (*Service, *serviceDeps) {
	if d == nil {
		d = &serviceDeps{}
	}
	if d.telemetry == nil {
		d.telemetry = &mockTelemetryStore{count: 1}
	}
	if d.patterns == nil {
		d.patterns = &mockPatternStore{}
	}
	if d.profiles == nil {
		d.profiles = &mockProfileStore{}
	}
	if d.alerts == nil {
		d.alerts = &mockAlertSender{}
	}
	if d.queue == nil {
		d.queue = &mockQueue{}
	}
	engine := NewEngine(nil, d.telemetry, d.patterns, nil, nil)
	svc := NewService(engine, d.telemetry, d.profiles, d.alerts, d.queue, nil, nil)
	return svc, d
}

func TestIngest_RejectsInvalidEvent(t *testing.T) {
	t.Parallel()

	svc, d := newTestService(nil)

	_, err := svc.Ingest(context.Background(), &telemetry.Event{Glucose: 5.0})
	if err == nil {
		t.Fatal("Ingest accepted an event without user_id")
	}
	if len(d.telemetry.inserted) != 0 {
		t.Error("invalid event was persisted")
	}
}

func TestIngest_HardTriggerDispatchesAlert(t *testing.T) {
	t.Parallel()

	svc, d := newTestService(nil)

	res, err := svc.Ingest(context.Background(), event(3.0, 80, engineBase))
	if err != nil {
		t.Fatalf("Ingest = %v", err)
	}
	if res.Trigger != OutcomeHard {
		t.Fatalf("trigger = %q, want %q", res.Trigger, OutcomeHard)
	}
	if res.TaskID != "" {
		t.Error("hard outcome carries a task ID")
	}
	if d.alerts.calls != 1 {
		t.Fatalf("alert calls = %d, want 1", d.alerts.calls)
	}
	if !strings.Contains(d.alerts.lastMsg, "below 3.9") {
		t.Errorf("alert message = %q, want the firing reason", d.alerts.lastMsg)
	}
	if len(d.queue.tasks) != 0 {
		t.Error("hard outcome enqueued an investigation task")
	}
}

func TestIngest_PersistsEveryEvent(t *testing.T) {
	t.Parallel()

	svc, d := newTestService(nil)

	for _, ev := range []*telemetry.Event{
		event(3.0, 80, engineBase),                     // hard
		event(6.5, 80, engineBase.Add(5*time.Minute)),  // none
		event(5.0, 80, engineBase.Add(10*time.Minute)), // none (no patterns)
	} {
		if _, err := svc.Ingest(context.Background(), ev); err != nil {
			t.Fatalf("Ingest = %v", err)
		}
	}
	if len(d.telemetry.inserted) != 3 {
		t.Errorf("persisted %d events, want 3", len(d.telemetry.inserted))
	}
}

func TestIngest_SoftTriggerEnqueuesTask(t *testing.T) {
	t.Parallel()

	d := &serviceDeps{patterns: &mockPatternStore{candidates: []ActivityPattern{{
		ActivityType: "running", Probability: 0.9, HourOfDay: 10, AvgGlucoseDrop: 2.0,
	}}}}
	svc, d := newTestService(d)

	res, err := svc.Ingest(context.Background(), event(4.8, 80, engineBase))
	if err != nil {
		t.Fatalf("Ingest = %v", err)
	}
	if res.Trigger != OutcomeSoft {
		t.Fatalf("trigger = %q, want %q", res.Trigger, OutcomeSoft)
	}
	if len(d.queue.tasks) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(d.queue.tasks))
	}
	if res.TaskID != d.queue.tasks[0].ID {
		t.Errorf("result task ID %q does not match enqueued %q", res.TaskID, d.queue.tasks[0].ID)
	}
	if d.alerts.calls != 0 {
		t.Error("soft outcome dispatched an emergency alert")
	}
}

func TestIngest_NoTrigger(t *testing.T) {
	t.Parallel()

	svc, d := newTestService(nil)

	res, err := svc.Ingest(context.Background(), event(6.5, 80, engineBase))
	if err != nil {
		t.Fatalf("Ingest = %v", err)
	}
	if res.Trigger != OutcomeNone {
		t.Fatalf("trigger = %q, want %q", res.Trigger, OutcomeNone)
	}
	if d.alerts.calls != 0 || len(d.queue.tasks) != 0 {
		t.Error("quiet event produced side effects")
	}
}

func TestIngest_AlertFailureStillReportsHard(t *testing.T) {
	t.Parallel()

	d := &serviceDeps{alerts: &mockAlertSender{err: xerrors.New("webhook down")}}
	svc, _ := newTestService(d)

	res, err := svc.Ingest(context.Background(), event(3.0, 80, engineBase))
	if err != nil {
		t.Fatalf("Ingest = %v", err)
	}
	if res.Trigger != OutcomeHard {
		t.Errorf("trigger = %q, want %q despite alert failure", res.Trigger, OutcomeHard)
	}
}

func TestIngest_EnqueueFailureStillReportsSoft(t *testing.T) {
	t.Parallel()

	d := &serviceDeps{
		patterns: &mockPatternStore{candidates: []ActivityPattern{{
			ActivityType: "running", Probability: 0.9, HourOfDay: 10, AvgGlucoseDrop: 2.0,
		}}},
		queue: &mockQueue{err: xerrors.New("queue full")},
	}
	svc, _ := newTestService(d)

	res, err := svc.Ingest(context.Background(), event(4.8, 80, engineBase))
	if err != nil {
		t.Fatalf("Ingest = %v", err)
	}
	if res.Trigger != OutcomeSoft {
		t.Errorf("trigger = %q, want %q despite enqueue failure", res.Trigger, OutcomeSoft)
	}
	if res.TaskID == "" {
		t.Error("task ID missing from soft result")
	}
}

func TestIngest_AgeFromBirthYear(t *testing.T) {
	t.Parallel()

	// A 20 year old's ceiling is (220-20)*0.90 = 180 bpm; heart rate 175
	// fires only when the profile lookup fails and the default age applies.
	tests := []struct {
		name     string
		profiles *mockProfileStore
		wantHard bool
	}{
		{"known young user", &mockProfileStore{year: time.Now().Year() - 20, ok: true}, false},
		{"missing profile uses default", &mockProfileStore{}, true},
		{"lookup failure uses default", &mockProfileStore{err: xerrors.New("db down")}, true},
		{"implausible birth year uses default", &mockProfileStore{year: time.Now().Year() + 5, ok: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _ := newTestService(&serviceDeps{profiles: tt.profiles})
			res, err := svc.Ingest(context.Background(), event(6.5, 175, engineBase))
			if err != nil {
				t.Fatalf("Ingest = %v", err)
			}
			gotHard := res.Trigger == OutcomeHard
			if gotHard != tt.wantHard {
				t.Errorf("hard = %v, want %v", gotHard, tt.wantHard)
			}
		})
	}
}

func TestJoinReasons(t *testing.T) {
	t.Parallel()

	if got := joinReasons([]string{"a"}); got != "a" {
		t.Errorf("joinReasons = %q, want %q", got, "a")
	}
	if got := joinReasons([]string{"a", "b", "c"}); got != "a; b; c" {
		t.Errorf("joinReasons = %q, want %q", got, "a; b; c")
	}
}
