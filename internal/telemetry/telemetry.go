// Package telemetry defines the wire models shared between the ingestion
// gateway, the trigger engine, and the investigation pipeline: the inbound
// Event from a wearable device and the InvestigationTask handed to pipeline
// workers when a soft trigger fires.
package telemetry

import (
	"time"

	"github.com/linnemanlabs/go-core/xerrors"
)

// Event is a single telemetry reading from a user's wearable device.
// Immutable once received; consumed exactly once by the trigger engine.
type Event struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	HeartRate int       `json:"heart_rate"`
	Glucose   float64   `json:"glucose"` // mmol/L
	GPSLat    float64   `json:"gps_lat"`
	GPSLng    float64   `json:"gps_lng"`
}

// Validate checks the event for structural problems that make it unusable.
// A failure here aborts processing of this event only.
func (e *Event) Validate() error {
	if e.UserID == "" {
		return xerrors.New("telemetry: user_id is required")
	}
	if e.Timestamp.IsZero() {
		return xerrors.New("telemetry: timestamp is required")
	}
	if e.HeartRate < 0 || e.HeartRate > 300 {
		return xerrors.Newf("telemetry: heart_rate %d out of range", e.HeartRate)
	}
	if e.Glucose < 0 || e.Glucose > 50 {
		return xerrors.Newf("telemetry: glucose %.2f out of range", e.Glucose)
	}
	if e.GPSLat < -90 || e.GPSLat > 90 {
		return xerrors.Newf("telemetry: gps_lat %.4f out of range", e.GPSLat)
	}
	if e.GPSLng < -180 || e.GPSLng > 180 {
		return xerrors.Newf("telemetry: gps_lng %.4f out of range", e.GPSLng)
	}
	return nil
}

// TriggerType identifies which soft-trigger rule produced an investigation task.
type TriggerType string

const (
	// TriggerGlucoseDeclineSlope fires when the regression slope of recent
	// glucose samples falls below the decline threshold.
	TriggerGlucoseDeclineSlope TriggerType = "SOFT_GLUCOSE_DECLINE_SLOPE"

	// TriggerPreExerciseLowBuffer fires when glucose sits in the low-buffer
	// band while a high-probability activity is predicted to start soon.
	TriggerPreExerciseLowBuffer TriggerType = "SOFT_PRE_EXERCISE_LOW_BUFFER"
)

// InvestigationTask is the unit of work handed from trigger detection to the
// investigation pipeline. Immutable; serialized onto the task queue.
type InvestigationTask struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	TriggerType    TriggerType `json:"trigger_type"`
	TriggerAt      time.Time   `json:"trigger_at"`
	CurrentGlucose float64     `json:"current_glucose"`
	CurrentHR      int         `json:"current_hr"`
	GPSLat         float64     `json:"gps_lat"`
	GPSLng         float64     `json:"gps_lng"`
	ContextNotes   string      `json:"context_notes"`
}

// Validate checks the task carries the fields the pipeline cannot run without.
// This is the one failure class that fails the whole task instead of
// degrading to a fallback.
func (t *InvestigationTask) Validate() error {
	if t.UserID == "" {
		return xerrors.New("task: user_id is required")
	}
	if t.TriggerType != TriggerGlucoseDeclineSlope && t.TriggerType != TriggerPreExerciseLowBuffer {
		return xerrors.Newf("task: unknown trigger_type %q", t.TriggerType)
	}
	if t.TriggerAt.IsZero() {
		return xerrors.New("task: trigger_at is required")
	}
	return nil
}
