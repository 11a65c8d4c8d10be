// Package pgstore provides the PostgreSQL implementation of the guardian
// store interfaces (telemetry, profiles, weekly patterns, interventions).
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/guardian/internal/pipeline"
	"github.com/linnemanlabs/guardian/internal/telemetry"
	"github.com/linnemanlabs/guardian/internal/trigger"
)

var tracer = otel.Tracer("github.com/linnemanlabs/guardian/internal/store/pgstore")

//go:embed schema.sql
var schema string

// Store persists guardian state in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// InsertEvent appends a telemetry event to the user's log.
func (s *Store) InsertEvent(ctx context.Context, ev *telemetry.Event) error {
	ctx, span := s.startSpan(ctx, "pgstore.InsertEvent", "INSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO telemetry_log (user_id, recorded_at, heart_rate, glucose, gps_lat, gps_lng)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.UserID, ev.Timestamp, ev.HeartRate, ev.Glucose, ev.GPSLat, ev.GPSLng,
	)
	if err != nil {
		s.recordErr(span, err)
		return fmt.Errorf("insert telemetry: %w", err)
	}
	return nil
}

// CountEventsSince counts the user's events recorded at or after since.
func (s *Store) CountEventsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	ctx, span := s.startSpan(ctx, "pgstore.CountEventsSince", "SELECT")
	defer span.End()

	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM telemetry_log WHERE user_id = $1 AND recorded_at >= $2`,
		userID, since,
	).Scan(&n)
	if err != nil {
		s.recordErr(span, err)
		return 0, fmt.Errorf("count telemetry: %w", err)
	}
	return n, nil
}

// BirthYear returns the user's birth year. ok=false when the profile is
// missing or the column is null.
func (s *Store) BirthYear(ctx context.Context, userID string) (int, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.BirthYear", "SELECT")
	defer span.End()

	var year *int
	err := s.pool.QueryRow(ctx,
		`SELECT birth_year FROM users WHERE user_id = $1`,
		userID,
	).Scan(&year)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		s.recordErr(span, err)
		return 0, false, fmt.Errorf("select birth year: %w", err)
	}
	if year == nil {
		return 0, false, nil
	}
	return *year, true, nil
}

// ActivityCandidates returns the user's patterns for the day whose hour is in
// hours with probability at least minProb, highest probability first.
func (s *Store) ActivityCandidates(ctx context.Context, userID string, day time.Weekday, hours []int, minProb float64) ([]trigger.ActivityPattern, error) {
	ctx, span := s.startSpan(ctx, "pgstore.ActivityCandidates", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT activity_type, probability, hour_of_day, COALESCE(avg_glucose_drop, 0)
		 FROM weekly_patterns
		 WHERE user_id = $1 AND day_of_week = $2 AND hour_of_day = ANY($3) AND probability >= $4
		 ORDER BY probability DESC`,
		userID, int(day), hours, minProb,
	)
	if err != nil {
		s.recordErr(span, err)
		return nil, fmt.Errorf("select patterns: %w", err)
	}
	defer rows.Close()

	var out []trigger.ActivityPattern
	for rows.Next() {
		var p trigger.ActivityPattern
		if err := rows.Scan(&p.ActivityType, &p.Probability, &p.HourOfDay, &p.AvgGlucoseDrop); err != nil {
			s.recordErr(span, err)
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		s.recordErr(span, err)
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}
	return out, nil
}

// decision is the serialized form of the reflector's output in the audit row.
type decision struct {
	RiskLevel          pipeline.RiskLevel `json:"risk_level"`
	ReasoningSummary   string             `json:"reasoning_summary"`
	InterventionAction pipeline.Action    `json:"intervention_action"`
}

// LogIntervention appends one audit record.
func (s *Store) LogIntervention(ctx context.Context, rec *pipeline.InterventionRecord) error {
	ctx, span := s.startSpan(ctx, "pgstore.LogIntervention", "INSERT")
	defer span.End()

	dec, err := json.Marshal(decision{
		RiskLevel:          rec.RiskLevel,
		ReasoningSummary:   rec.Reasoning,
		InterventionAction: rec.Action,
	})
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO intervention_log (user_id, triggered_at, trigger_type, decision, message_sent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.UserID, rec.TriggeredAt, string(rec.TriggerType), dec, rec.Message, rec.CreatedAt,
	)
	if err != nil {
		s.recordErr(span, err)
		return fmt.Errorf("insert intervention: %w", err)
	}
	return nil
}

// ListInterventions returns the user's most recent audit records, newest first.
func (s *Store) ListInterventions(ctx context.Context, userID string, limit int) ([]pipeline.InterventionRecord, error) {
	ctx, span := s.startSpan(ctx, "pgstore.ListInterventions", "SELECT")
	defer span.End()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, triggered_at, trigger_type, decision, message_sent, created_at
		 FROM intervention_log
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		s.recordErr(span, err)
		return nil, fmt.Errorf("select interventions: %w", err)
	}
	defer rows.Close()

	var out []pipeline.InterventionRecord
	for rows.Next() {
		var (
			rec         pipeline.InterventionRecord
			triggerType string
			decBytes    []byte
		)
		if err := rows.Scan(&rec.UserID, &rec.TriggeredAt, &triggerType, &decBytes, &rec.Message, &rec.CreatedAt); err != nil {
			s.recordErr(span, err)
			return nil, fmt.Errorf("scan intervention: %w", err)
		}
		rec.TriggerType = telemetry.TriggerType(triggerType)
		if len(decBytes) > 0 {
			var dec decision
			if err := json.Unmarshal(decBytes, &dec); err == nil {
				rec.RiskLevel = dec.RiskLevel
				rec.Reasoning = dec.ReasoningSummary
				rec.Action = dec.InterventionAction
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		s.recordErr(span, err)
		return nil, fmt.Errorf("iterate interventions: %w", err)
	}
	return out, nil
}

func (s *Store) startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func (s *Store) recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
