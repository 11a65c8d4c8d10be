// Package guardapi exposes the guardian HTTP surface: telemetry ingestion and
// the intervention audit read endpoint.
package guardapi

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/guardian/internal/pipeline"
	"github.com/linnemanlabs/guardian/internal/telemetry"
	"github.com/linnemanlabs/guardian/internal/trigger"
)

// IngestService defines the business operations guardapi needs for telemetry.
type IngestService interface {
	Ingest(ctx context.Context, ev *telemetry.Event) (*trigger.IngestResult, error)
}

// InterventionReader serves the audit read endpoint.
type InterventionReader interface {
	ListInterventions(ctx context.Context, userID string, limit int) ([]pipeline.InterventionRecord, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger        log.Logger
	svc           IngestService
	interventions InterventionReader
}

// New creates a new API handler.
func New(logger log.Logger, svc IngestService, interventions InterventionReader) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("ingest service is required"))
	}
	if interventions == nil {
		panic(xerrors.New("intervention reader is required"))
	}
	return &API{
		logger:        logger,
		svc:           svc,
		interventions: interventions,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/telemetry", a.handleIngestTelemetry)
		r.Get("/interventions/{user_id}", a.handleListInterventions)
	})
}
