package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/guardian/internal/telemetry"
)

// IngestResult is the outcome of ingesting one telemetry event.
type IngestResult struct {
	Trigger OutcomeKind
	TaskID  string
}

// Service is the business boundary for telemetry ingestion. It resolves the
// user's age, runs persistence and hard evaluation concurrently, dispatches
// the emergency alert on a hard outcome, and enqueues investigation tasks for
// soft outcomes.
type Service struct {
	engine   *Engine
	store    TelemetryStore
	profiles ProfileStore
	alerts   AlertSender
	queue    Queue
	logger   log.Logger
	metrics  *Metrics
}

// NewService creates a new ingestion service.
func NewService(engine *Engine, store TelemetryStore, profiles ProfileStore, alerts AlertSender, queue Queue, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		engine:   engine,
		store:    store,
		profiles: profiles,
		alerts:   alerts,
		queue:    queue,
		logger:   logger,
		metrics:  metrics,
	}
}

// Ingest processes one telemetry event end to end. The only error it returns
// is a validation failure on the event itself; every downstream failure is
// logged and degraded so one bad dependency never blocks ingestion.
func (s *Service) Ingest(ctx context.Context, ev *telemetry.Event) (*IngestResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	L := s.logger.With("user_id", ev.UserID)

	L.Info(ctx, "telemetry received",
		"glucose", ev.Glucose,
		"heart_rate", ev.HeartRate,
	)

	age := s.userAge(ctx, ev.UserID)

	// Persistence and hard evaluation have independent side effects and run
	// concurrently. Soft evaluation waits: it must see the window state for
	// this event only after hard rules have been ruled out.
	var (
		wg      sync.WaitGroup
		reasons []string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := s.store.InsertEvent(ctx, ev); err != nil {
			L.Error(ctx, err, "telemetry persist failed")
			s.metrics.incPersistFailure()
		}
	}()
	go func() {
		defer wg.Done()
		reasons = s.engine.EvaluateHard(ctx, ev, age)
	}()
	wg.Wait()

	if len(reasons) > 0 {
		reason := joinReasons(reasons)
		L.Info(ctx, "hard trigger fired", "reasons", reason)
		if err := s.alerts.SendEmergencyAlert(ctx, ev.UserID, reason); err != nil {
			L.Error(ctx, err, "emergency alert dispatch failed")
			s.metrics.incAlertFailure()
		}
		s.metrics.observeEvaluation(OutcomeHard, time.Since(start))
		return &IngestResult{Trigger: OutcomeHard}, nil
	}

	if task := s.engine.EvaluateSoft(ctx, ev); task != nil {
		if err := s.queue.Enqueue(ctx, task); err != nil {
			L.Error(ctx, err, "task enqueue failed", "trigger_type", task.TriggerType)
			s.metrics.incEnqueueFailure()
		} else {
			L.Info(ctx, "investigation task enqueued",
				"task_id", task.ID,
				"trigger_type", task.TriggerType,
			)
		}
		s.metrics.observeEvaluation(OutcomeSoft, time.Since(start))
		return &IngestResult{Trigger: OutcomeSoft, TaskID: task.ID}, nil
	}

	s.metrics.observeEvaluation(OutcomeNone, time.Since(start))
	return &IngestResult{Trigger: OutcomeNone}, nil
}

// userAge resolves the user's age from their birth year, defaulting when the
// profile is missing or the lookup fails.
func (s *Service) userAge(ctx context.Context, userID string) int {
	year, ok, err := s.profiles.BirthYear(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "birth year lookup failed, using default age",
			"user_id", userID, "default_age", DefaultUserAge, "error", err)
		return DefaultUserAge
	}
	if !ok {
		s.logger.Warn(ctx, "user birth year missing, using default age",
			"user_id", userID, "default_age", DefaultUserAge)
		return DefaultUserAge
	}
	age := time.Now().Year() - year
	if age <= 0 || age > 130 {
		return DefaultUserAge
	}
	return age
}

func joinReasons(reasons []string) string {
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += "; " + r
	}
	return out
}
