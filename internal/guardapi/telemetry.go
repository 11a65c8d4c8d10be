package guardapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/guardian/internal/telemetry"
)

// ingestResponse is the body returned for every accepted telemetry event.
type ingestResponse struct {
	Status  string `json:"status"`
	Trigger string `json:"trigger"`
	TaskID  string `json:"task_id,omitempty"`
}

func (a *API) handleIngestTelemetry(w http.ResponseWriter, r *http.Request) {
	var ev telemetry.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("guardian.user_id", ev.UserID))

	result, err := a.svc.Ingest(r.Context(), &ev)
	if err != nil {
		a.logger.Warn(r.Context(), "telemetry rejected", "user_id", ev.UserID, "error", err)
		http.Error(w, `{"error":"invalid telemetry"}`, http.StatusBadRequest)
		return
	}

	span.SetAttributes(attribute.String("guardian.trigger", string(result.Trigger)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(ingestResponse{
		Status:  "received",
		Trigger: string(result.Trigger),
		TaskID:  result.TaskID,
	})
}
