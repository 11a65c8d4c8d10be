package trigger

import "github.com/linnemanlabs/guardian/internal/telemetry"

// Clinical thresholds used by the rule evaluation. All numeric limits in the
// engine reference these constants.
const (
	// HardLowGlucose is the emergency low-glucose threshold in mmol/L.
	HardLowGlucose = 3.9

	// SoftLowMin and SoftLowMax bound the low-buffer band (mmol/L) in which
	// the pre-exercise rule is considered.
	SoftLowMin = 4.0
	SoftLowMax = 5.6

	// MaxHRRatio scales the age-adjusted maximum heart rate (220 - age).
	MaxHRRatio = 0.90

	// TelemetryGapMinutes is the silence interval that counts as a data gap.
	TelemetryGapMinutes = 30

	// PreExerciseWarnMinutes bounds how far from now a predicted activity
	// start may be for the pre-exercise rule to accept it.
	PreExerciseWarnMinutes = 60

	// ActivityProbabilityThreshold is the minimum predicted probability for
	// a weekly pattern to be considered at all.
	ActivityProbabilityThreshold = 0.70

	// GlucoseSlopeTrigger is the decline threshold in mmol/L per minute.
	GlucoseSlopeTrigger = -0.1

	// WindowMaxLen caps each per-user sliding window.
	WindowMaxLen = 20

	// DefaultUserAge is assumed when a profile has no birth year.
	DefaultUserAge = 30
)

// OutcomeKind classifies the result of evaluating one telemetry event.
type OutcomeKind string

const (
	// OutcomeNone means no rule matched.
	OutcomeNone OutcomeKind = "none"

	// OutcomeHard means at least one emergency condition fired.
	OutcomeHard OutcomeKind = "hard"

	// OutcomeSoft means a soft rule matched and produced an investigation task.
	OutcomeSoft OutcomeKind = "soft"
)

// Outcome is the result of trigger evaluation for a single event.
// Reasons is populated only for hard outcomes, Task only for soft ones.
type Outcome struct {
	Kind    OutcomeKind
	Reasons []string
	Task    *telemetry.InvestigationTask
}
