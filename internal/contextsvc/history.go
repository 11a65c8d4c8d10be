package contextsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GlucoseRecord is a single historical glucose reading.
type GlucoseRecord struct {
	Time    string  `json:"time"`
	Glucose float64 `json:"glucose"`
}

// UpcomingActivity is a predicted activity from the user's weekly patterns.
type UpcomingActivity struct {
	Type              string  `json:"type"`
	Probability       float64 `json:"probability"`
	ExpectedStartHour int     `json:"expected_start_hour"`
	AvgGlucoseDrop    float64 `json:"avg_glucose_drop"`
}

// History is the patient context returned by the history service.
type History struct {
	GlucoseHistory24h   []GlucoseRecord   `json:"glucose_history_24h"`
	UpcomingActivity    *UpcomingActivity `json:"upcoming_activity"`
	RecentExerciseDrops []float64         `json:"recent_exercise_drops"`
}

// HistoryClient resolves patient context against the history service.
type HistoryClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewHistoryClient creates a client for the patient history service.
func NewHistoryClient(endpoint string) *HistoryClient {
	return &HistoryClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: CallTimeout},
	}
}

type historyRequest struct {
	UserID        string `json:"user_id"`
	ReferenceTime string `json:"reference_time"`
}

// Resolve calls the history service for the given user and reference time.
func (c *HistoryClient) Resolve(ctx context.Context, userID string, referenceTime time.Time) (*History, error) {
	body, err := json.Marshal(historyRequest{
		UserID:        userID,
		ReferenceTime: referenceTime.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("history: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/tools/get_patient_context", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("history: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history: call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("history: service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out History
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("history: decode response: %w", err)
	}
	return &out, nil
}
