package trigger

import (
	"context"
	"time"

	"github.com/linnemanlabs/guardian/internal/telemetry"
)

// TelemetryStore persists raw events and answers the data-gap query.
type TelemetryStore interface {
	InsertEvent(ctx context.Context, ev *telemetry.Event) error
	CountEventsSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// ProfileStore resolves user demographics for the heart-rate rule.
type ProfileStore interface {
	// BirthYear returns the user's birth year. ok=false when the profile is
	// missing or has no birth year recorded.
	BirthYear(ctx context.Context, userID string) (year int, ok bool, err error)
}

// ActivityPattern is one row of the weekly activity-probability table.
type ActivityPattern struct {
	ActivityType   string
	Probability    float64
	HourOfDay      int
	AvgGlucoseDrop float64
}

// PatternStore answers weekly activity-probability queries for the
// pre-exercise rule.
type PatternStore interface {
	// ActivityCandidates returns patterns for the user on the given day of
	// week whose hour falls in hours and whose probability is at least
	// minProb, sorted by probability descending.
	ActivityCandidates(ctx context.Context, userID string, day time.Weekday, hours []int, minProb float64) ([]ActivityPattern, error)
}

// AlertSender dispatches emergency alerts for hard triggers.
type AlertSender interface {
	SendEmergencyAlert(ctx context.Context, userID, reason string) error
}

// Queue hands investigation tasks to the pipeline workers.
type Queue interface {
	Enqueue(ctx context.Context, task *telemetry.InvestigationTask) error
}
