// Package memstore provides an in-memory implementation of the guardian
// store interfaces (telemetry, profiles, weekly patterns, interventions).
// Suitable for dev deployments and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/guardian/internal/pipeline"
	"github.com/linnemanlabs/guardian/internal/telemetry"
	"github.com/linnemanlabs/guardian/internal/trigger"
)

type patternRow struct {
	day     time.Weekday
	pattern trigger.ActivityPattern
}

// Store holds all guardian state in memory.
type Store struct {
	mu            sync.RWMutex
	events        map[string][]telemetry.Event
	birthYears    map[string]int
	patterns      map[string][]patternRow
	interventions map[string][]pipeline.InterventionRecord
}

// New initializes an empty in-memory store.
func New() *Store {
	return &Store{
		events:        make(map[string][]telemetry.Event),
		birthYears:    make(map[string]int),
		patterns:      make(map[string][]patternRow),
		interventions: make(map[string][]pipeline.InterventionRecord),
	}
}

// InsertEvent appends a telemetry event to the user's log.
func (s *Store) InsertEvent(_ context.Context, ev *telemetry.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.UserID] = append(s.events[ev.UserID], *ev)
	return nil
}

// CountEventsSince counts the user's events recorded at or after since.
func (s *Store) CountEventsSince(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	for _, ev := range s.events[userID] {
		if !ev.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

// SetBirthYear seeds a user profile.
func (s *Store) SetBirthYear(userID string, year int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.birthYears[userID] = year
}

// BirthYear returns the user's birth year, if known.
func (s *Store) BirthYear(_ context.Context, userID string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	year, ok := s.birthYears[userID]
	return year, ok, nil
}

// AddPattern seeds a weekly activity pattern row.
func (s *Store) AddPattern(userID string, day time.Weekday, p trigger.ActivityPattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[userID] = append(s.patterns[userID], patternRow{day: day, pattern: p})
}

// ActivityCandidates returns the user's patterns for the day whose hour is in
// hours and whose probability is at least minProb, highest probability first.
func (s *Store) ActivityCandidates(_ context.Context, userID string, day time.Weekday, hours []int, minProb float64) ([]trigger.ActivityPattern, error) {
	hourSet := make(map[int]struct{}, len(hours))
	for _, h := range hours {
		hourSet[h] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []trigger.ActivityPattern
	for _, row := range s.patterns[userID] {
		if row.day != day {
			continue
		}
		if _, ok := hourSet[row.pattern.HourOfDay]; !ok {
			continue
		}
		if row.pattern.Probability < minProb {
			continue
		}
		out = append(out, row.pattern)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Probability > out[j].Probability })
	return out, nil
}

// LogIntervention stores a copy of the audit record.
func (s *Store) LogIntervention(_ context.Context, rec *pipeline.InterventionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interventions[rec.UserID] = append(s.interventions[rec.UserID], *rec)
	return nil
}

// ListInterventions returns the user's most recent audit records, newest
// first. Out-of-range limits clamp to 50, matching the Postgres store.
func (s *Store) ListInterventions(_ context.Context, userID string, limit int) ([]pipeline.InterventionRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.interventions[userID]
	out := make([]pipeline.InterventionRecord, len(recs))
	copy(out, recs)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
