package telemetry

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

var eventBase = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func validEvent() Event {
	return Event{
		UserID:    "u-1",
		Timestamp: eventBase,
		HeartRate: 88,
		Glucose:   5.4,
		GPSLat:    52.52,
		GPSLng:    13.40,
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Event)
		wantErr string
	}{
		{"valid", func(e *Event) {}, ""},
		{"missing user", func(e *Event) { e.UserID = "" }, "user_id"},
		{"zero timestamp", func(e *Event) { e.Timestamp = time.Time{} }, "timestamp"},
		{"negative heart rate", func(e *Event) { e.HeartRate = -1 }, "heart_rate"},
		{"heart rate too high", func(e *Event) { e.HeartRate = 301 }, "heart_rate"},
		{"heart rate at upper bound", func(e *Event) { e.HeartRate = 300 }, ""},
		{"zero heart rate", func(e *Event) { e.HeartRate = 0 }, ""},
		{"negative glucose", func(e *Event) { e.Glucose = -0.1 }, "glucose"},
		{"glucose too high", func(e *Event) { e.Glucose = 50.1 }, "glucose"},
		{"glucose at upper bound", func(e *Event) { e.Glucose = 50 }, ""},
		{"latitude below range", func(e *Event) { e.GPSLat = -90.01 }, "gps_lat"},
		{"latitude above range", func(e *Event) { e.GPSLat = 90.01 }, "gps_lat"},
		{"latitude at pole", func(e *Event) { e.GPSLat = 90 }, ""},
		{"longitude below range", func(e *Event) { e.GPSLng = -180.5 }, "gps_lng"},
		{"longitude above range", func(e *Event) { e.GPSLng = 180.5 }, "gps_lng"},
		{"longitude at antimeridian", func(e *Event) { e.GPSLng = -180 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := validEvent()
			tt.mutate(&e)
			err := e.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error naming %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestInvestigationTaskValidate(t *testing.T) {
	t.Parallel()

	valid := InvestigationTask{
		ID:          "01HTEST000000000000000000",
		UserID:      "u-1",
		TriggerType: TriggerGlucoseDeclineSlope,
		TriggerAt:   eventBase,
	}

	tests := []struct {
		name    string
		mutate  func(*InvestigationTask)
		wantErr string
	}{
		{"valid slope", func(tk *InvestigationTask) {}, ""},
		{"valid buffer", func(tk *InvestigationTask) { tk.TriggerType = TriggerPreExerciseLowBuffer }, ""},
		{"missing user", func(tk *InvestigationTask) { tk.UserID = "" }, "user_id"},
		{"empty trigger type", func(tk *InvestigationTask) { tk.TriggerType = "" }, "trigger_type"},
		{"unknown trigger type", func(tk *InvestigationTask) { tk.TriggerType = "HARD_LOW_GLUCOSE" }, "trigger_type"},
		{"zero trigger time", func(tk *InvestigationTask) { tk.TriggerAt = time.Time{} }, "trigger_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tk := valid
			tt.mutate(&tk)
			err := tk.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestEventJSONWireNames(t *testing.T) {
	t.Parallel()

	raw := `{"user_id":"u-1","timestamp":"2026-03-14T10:00:00Z","heart_rate":88,"glucose":5.4,"gps_lat":52.52,"gps_lng":13.4}`

	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e != validEvent() {
		t.Errorf("decoded %+v, want %+v", e, validEvent())
	}
	if err := e.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestInvestigationTaskRoundTripsThroughQueueEncoding(t *testing.T) {
	t.Parallel()

	task := InvestigationTask{
		ID:             "01HTEST000000000000000000",
		UserID:         "u-1",
		TriggerType:    TriggerPreExerciseLowBuffer,
		TriggerAt:      eventBase,
		CurrentGlucose: 4.8,
		CurrentHR:      92,
		GPSLat:         52.52,
		GPSLng:         13.40,
		ContextNotes:   "activity=running probability=0.85",
	}

	raw, err := json.Marshal(&task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got InvestigationTask
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != task {
		t.Errorf("round trip changed the task:\n got %+v\nwant %+v", got, task)
	}
}
