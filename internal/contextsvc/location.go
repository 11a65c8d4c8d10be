// Package contextsvc provides typed HTTP clients for the two context
// resolution services the investigation pipeline fans out to: semantic
// location lookup and patient history lookup. The clients return errors;
// fallback substitution is the caller's concern.
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

// CallTimeout bounds each context-provider call.
const CallTimeout = 5 * time.Second

// NearbyPlace is a known place near the user's current position.
type NearbyPlace struct {
	Name      string `json:"name"`
	DistanceM int    `json:"distance_m"`
	Type      string `json:"type"`
}

// Location is the resolved semantic location for a GPS coordinate.
type Location struct {
	SemanticLocation  string        `json:"semantic_location"`
	IsAtHome          bool          `json:"is_at_home"`
	NearbyKnownPlaces []NearbyPlace `json:"nearby_known_places"`
}

// LocationClient resolves GPS coordinates against the location service.
type LocationClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewLocationClient creates a client for the location resolution service.
func NewLocationClient(endpoint string) *LocationClient {
	return &LocationClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: CallTimeout},
	}
}

type locationRequest struct {
	UserID string  `json:"user_id"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

// Resolve calls the location service for the given user and coordinates.
func (c *LocationClient) Resolve(ctx context.Context, userID string, lat, lng float64) (*Location, error) {
	body, err := json.Marshal(locationRequest{UserID: userID, Lat: lat, Lng: lng})
	if err != nil {
		return nil, fmt.Errorf("location: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/tools/get_semantic_location", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("location: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("location: call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("location: service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out Location
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("location: decode response: %w", err)
	}
	return &out, nil
}
