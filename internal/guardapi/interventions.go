package guardapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/guardian/internal/pipeline"
)

const defaultInterventionLimit = 50

// interventionView is the wire form of one audit record.
type interventionView struct {
	UserID      string    `json:"user_id"`
	TriggeredAt time.Time `json:"triggered_at"`
	TriggerType string    `json:"trigger_type"`
	RiskLevel   string    `json:"risk_level"`
	Reasoning   string    `json:"reasoning_summary"`
	Action      string    `json:"intervention_action"`
	Message     string    `json:"message_sent"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a *API) handleListInterventions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("guardian.user_id", userID))

	limit := defaultInterventionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := a.interventions.ListInterventions(r.Context(), userID, limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list interventions", "user_id", userID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	views := make([]interventionView, 0, len(records))
	for _, rec := range records {
		views = append(views, viewOf(rec))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"user_id":       userID,
		"interventions": views,
	})
}

func viewOf(rec pipeline.InterventionRecord) interventionView {
	return interventionView{
		UserID:      rec.UserID,
		TriggeredAt: rec.TriggeredAt,
		TriggerType: string(rec.TriggerType),
		RiskLevel:   string(rec.RiskLevel),
		Reasoning:   rec.Reasoning,
		Action:      string(rec.Action),
		Message:     rec.Message,
		CreatedAt:   rec.CreatedAt,
	}
}
