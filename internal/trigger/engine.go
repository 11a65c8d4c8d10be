package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/guardian/internal/telemetry"
)

// Engine evaluates trigger rules for a single telemetry event. It holds the
// per-user sliding windows and reads from the telemetry and pattern stores;
// all side effects (persistence, alerting, enqueueing) belong to the Service.
type Engine struct {
	windows   *Windows
	telemetry TelemetryStore
	patterns  PatternStore
	logger    log.Logger
	metrics   *Metrics
}

// NewEngine creates a trigger engine with the given dependencies. A nil
// windows gets a fresh one; passing it in lets the caller share it with
// metrics.
func NewEngine(windows *Windows, telemetryStore TelemetryStore, patterns PatternStore, logger log.Logger, metrics *Metrics) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	if windows == nil {
		windows = NewWindows()
	}
	return &Engine{
		windows:   windows,
		telemetry: telemetryStore,
		patterns:  patterns,
		logger:    logger,
		metrics:   metrics,
	}
}

// Windows exposes the engine's sliding-window state, mainly for metrics.
func (e *Engine) Windows() *Windows { return e.windows }

// Evaluate runs hard rules first and, only if none fire, appends the event to
// the user's window and runs soft rules. Reasons accumulate for hard
// outcomes; the first matching soft rule wins.
func (e *Engine) Evaluate(ctx context.Context, ev *telemetry.Event, age int) Outcome {
	if reasons := e.EvaluateHard(ctx, ev, age); len(reasons) > 0 {
		return Outcome{Kind: OutcomeHard, Reasons: reasons}
	}
	if task := e.EvaluateSoft(ctx, ev); task != nil {
		return Outcome{Kind: OutcomeSoft, Task: task}
	}
	return Outcome{Kind: OutcomeNone}
}

// EvaluateHard checks the emergency conditions. The conditions are
// independent: every satisfied one contributes a reason, none short-circuit.
// The data-gap check is best-effort; a store failure is logged and treated as
// no gap so an unrelated outage can never fire a spurious alert.
func (e *Engine) EvaluateHard(ctx context.Context, ev *telemetry.Event, age int) []string {
	var reasons []string

	if ev.Glucose < HardLowGlucose {
		reasons = append(reasons, fmt.Sprintf("glucose=%.1f below %.1f mmol/L", ev.Glucose, HardLowGlucose))
		e.metrics.incHardReason("low_glucose")
	}

	maxHR := float64(220-age) * MaxHRRatio
	if float64(ev.HeartRate) > maxHR {
		reasons = append(reasons, fmt.Sprintf("heart_rate=%d exceeds max %.0f bpm", ev.HeartRate, maxHR))
		e.metrics.incHardReason("high_heart_rate")
	}

	cutoff := ev.Timestamp.Add(-TelemetryGapMinutes * time.Minute)
	recent, err := e.telemetry.CountEventsSince(ctx, ev.UserID, cutoff)
	if err != nil {
		e.logger.Warn(ctx, "gap check failed, assuming no gap", "user_id", ev.UserID, "error", err)
		e.metrics.incGapCheckFailure()
	} else if recent == 0 {
		reasons = append(reasons, fmt.Sprintf("no telemetry in last %d minutes", TelemetryGapMinutes))
		e.metrics.incHardReason("telemetry_gap")
	}

	return reasons
}

// EvaluateSoft appends the event to the user's window and evaluates the soft
// rules in fixed order, returning an investigation task for the first match
// or nil when none matches.
func (e *Engine) EvaluateSoft(ctx context.Context, ev *telemetry.Event) *telemetry.InvestigationTask {
	samples := e.windows.Append(ev.UserID, Sample{
		At:        ev.Timestamp,
		Glucose:   ev.Glucose,
		HeartRate: ev.HeartRate,
	})

	if slope, ok := glucoseSlope(samples); ok && slope < GlucoseSlopeTrigger {
		e.logger.Info(ctx, "soft trigger fired",
			"user_id", ev.UserID,
			"trigger_type", telemetry.TriggerGlucoseDeclineSlope,
			"glucose", ev.Glucose,
			"slope", slope,
		)
		e.metrics.incSoftTrigger(string(telemetry.TriggerGlucoseDeclineSlope))
		return e.newTask(ev, telemetry.TriggerGlucoseDeclineSlope,
			fmt.Sprintf("Glucose slope=%.4f mmol/L/min", slope))
	}

	if ev.Glucose >= SoftLowMin && ev.Glucose <= SoftLowMax {
		upcoming, err := e.checkUpcomingActivity(ctx, ev.UserID, ev.Timestamp)
		if err != nil {
			e.logger.Warn(ctx, "activity check failed, assuming no match", "user_id", ev.UserID, "error", err)
			e.metrics.incActivityCheckFailure()
			return nil
		}
		if upcoming != nil {
			e.logger.Info(ctx, "soft trigger fired",
				"user_id", ev.UserID,
				"trigger_type", telemetry.TriggerPreExerciseLowBuffer,
				"glucose", ev.Glucose,
				"upcoming_activity", upcoming.ActivityType,
			)
			e.metrics.incSoftTrigger(string(telemetry.TriggerPreExerciseLowBuffer))
			return e.newTask(ev, telemetry.TriggerPreExerciseLowBuffer,
				fmt.Sprintf("Upcoming %s (probability=%.2f, avg_drop=%.2f)",
					upcoming.ActivityType, upcoming.Probability, upcoming.AvgGlucoseDrop))
		}
	}

	return nil
}

func (e *Engine) newTask(ev *telemetry.Event, tt telemetry.TriggerType, notes string) *telemetry.InvestigationTask {
	return &telemetry.InvestigationTask{
		ID:             ulid.Make().String(),
		UserID:         ev.UserID,
		TriggerType:    tt,
		TriggerAt:      ev.Timestamp,
		CurrentGlucose: ev.Glucose,
		CurrentHR:      ev.HeartRate,
		GPSLat:         ev.GPSLat,
		GPSLng:         ev.GPSLng,
		ContextNotes:   notes,
	}
}

// checkUpcomingActivity queries the weekly pattern table for a
// high-probability activity close to now. The hour-bucket set covers the
// current hour plus the adjacent hour across the 30-minute boundary, so a
// pattern scheduled just past the hour edge is still considered. The
// highest-probability candidate is accepted only if its start lies within
// PreExerciseWarnMinutes of now, in either direction.
func (e *Engine) checkUpcomingActivity(ctx context.Context, userID string, now time.Time) (*ActivityPattern, error) {
	hours := []int{now.Hour()}
	if now.Minute() >= 30 {
		hours = append(hours, (now.Hour()+1)%24)
	}
	if now.Minute() <= 30 {
		hours = append(hours, (now.Hour()+23)%24)
	}

	candidates, err := e.patterns.ActivityCandidates(ctx, userID, now.Weekday(), hours, ActivityProbabilityThreshold)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	best := candidates[0]
	start := time.Date(now.Year(), now.Month(), now.Day(), best.HourOfDay, 0, 0, 0, now.Location())
	minutesUntil := start.Sub(now).Minutes()
	if minutesUntil < -PreExerciseWarnMinutes || minutesUntil > PreExerciseWarnMinutes {
		return nil, nil
	}
	return &best, nil
}
