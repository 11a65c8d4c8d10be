package trigger

import (
	"sync"
	"time"
)

// Sample is one window entry: the fields the trend rules look at.
type Sample struct {
	At        time.Time
	Glucose   float64
	HeartRate int
}

// Windows holds the per-user sliding windows of recent samples. Windows are
// created lazily on first append and live for the process lifetime; users who
// stop sending telemetry keep their slot (see DESIGN.md on map growth).
//
// Appends for the same user are serialized by a per-user lock so concurrent
// ingestion never produces lost updates or a torn snapshot.
type Windows struct {
	mu     sync.RWMutex
	byUser map[string]*userWindow
	maxLen int
}

type userWindow struct {
	mu      sync.Mutex
	samples []Sample
}

// NewWindows creates an empty window set with capacity WindowMaxLen per user.
func NewWindows() *Windows {
	return &Windows{
		byUser: make(map[string]*userWindow),
		maxLen: WindowMaxLen,
	}
}

// Append adds the sample to the user's window, evicting the oldest entry once
// the window is full, and returns a snapshot of the window contents after the
// append. The snapshot is taken under the user's lock, so rule evaluation for
// event k sees exactly the samples appended for events 1..k.
func (w *Windows) Append(userID string, s Sample) []Sample {
	w.mu.RLock()
	uw, ok := w.byUser[userID]
	w.mu.RUnlock()

	if !ok {
		w.mu.Lock()
		uw, ok = w.byUser[userID]
		if !ok {
			uw = &userWindow{samples: make([]Sample, 0, w.maxLen)}
			w.byUser[userID] = uw
		}
		w.mu.Unlock()
	}

	uw.mu.Lock()
	defer uw.mu.Unlock()

	if len(uw.samples) == w.maxLen {
		copy(uw.samples, uw.samples[1:])
		uw.samples = uw.samples[:w.maxLen-1]
	}
	uw.samples = append(uw.samples, s)

	snapshot := make([]Sample, len(uw.samples))
	copy(snapshot, uw.samples)
	return snapshot
}

// Len reports the current window length for a user. Zero if the user has
// never sent telemetry.
func (w *Windows) Len(userID string) int {
	w.mu.RLock()
	uw, ok := w.byUser[userID]
	w.mu.RUnlock()
	if !ok {
		return 0
	}
	uw.mu.Lock()
	defer uw.mu.Unlock()
	return len(uw.samples)
}

// Users reports how many distinct users hold a window.
func (w *Windows) Users() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.byUser)
}

// glucoseSlope computes the least-squares linear regression slope of glucose
// against elapsed minutes since the oldest sample. It reports ok=false when
// the window has fewer than 3 samples or spans zero time.
func glucoseSlope(samples []Sample) (slope float64, ok bool) {
	if len(samples) < 3 {
		return 0, false
	}

	t0 := samples[0].At
	n := float64(len(samples))

	var sumX, sumY, sumXY, sumXX float64
	for _, s := range samples {
		x := s.At.Sub(t0).Minutes()
		y := s.Glucose
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	if samples[len(samples)-1].At.Sub(t0) <= 0 {
		return 0, false
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, false
	}
	return (n*sumXY - sumX*sumY) / denom, true
}
