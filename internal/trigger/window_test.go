package trigger

import (
	"math"
	"sync"
	"testing"
	"time"
)

var windowBase = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func sampleAt(minutes int, glucose float64) Sample {
	return Sample{At: windowBase.Add(time.Duration(minutes) * time.Minute), Glucose: glucose, HeartRate: 80}
}

func TestWindows_AppendReturnsSnapshot(t *testing.T) {
	t.Parallel()

	w := NewWindows()

	got := w.Append("u-1", sampleAt(0, 7.0))
	if len(got) != 1 {
		t.Fatalf("snapshot length = %d, want 1", len(got))
	}

	got = w.Append("u-1", sampleAt(5, 6.8))
	if len(got) != 2 {
		t.Fatalf("snapshot length = %d, want 2", len(got))
	}
	if got[0].Glucose != 7.0 || got[1].Glucose != 6.8 {
		t.Errorf("snapshot order = %.1f, %.1f; want 7.0, 6.8", got[0].Glucose, got[1].Glucose)
	}
}

func TestWindows_SnapshotIsIsolated(t *testing.T) {
	t.Parallel()

	w := NewWindows()
	snap := w.Append("u-1", sampleAt(0, 7.0))
	snap[0].Glucose = 99.0

	got := w.Append("u-1", sampleAt(5, 6.8))
	if got[0].Glucose != 7.0 {
		t.Errorf("window mutated through snapshot: glucose = %.1f, want 7.0", got[0].Glucose)
	}
}

func TestWindows_EvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	w := NewWindows()
	for i := 0; i < WindowMaxLen; i++ {
		w.Append("u-1", sampleAt(i, float64(i)))
	}
	if n := w.Len("u-1"); n != WindowMaxLen {
		t.Fatalf("Len = %d, want %d", n, WindowMaxLen)
	}

	got := w.Append("u-1", sampleAt(WindowMaxLen, float64(WindowMaxLen)))
	if len(got) != WindowMaxLen {
		t.Fatalf("snapshot length = %d, want %d after eviction", len(got), WindowMaxLen)
	}
	if got[0].Glucose != 1.0 {
		t.Errorf("oldest sample glucose = %.1f, want 1.0 (sample 0 evicted)", got[0].Glucose)
	}
	if got[WindowMaxLen-1].Glucose != float64(WindowMaxLen) {
		t.Errorf("newest sample glucose = %.1f, want %.1f", got[WindowMaxLen-1].Glucose, float64(WindowMaxLen))
	}
}

func TestWindows_PerUserIsolation(t *testing.T) {
	t.Parallel()

	w := NewWindows()
	w.Append("u-1", sampleAt(0, 7.0))
	w.Append("u-2", sampleAt(0, 5.0))
	w.Append("u-1", sampleAt(5, 6.8))

	if n := w.Len("u-1"); n != 2 {
		t.Errorf("Len(u-1) = %d, want 2", n)
	}
	if n := w.Len("u-2"); n != 1 {
		t.Errorf("Len(u-2) = %d, want 1", n)
	}
	if n := w.Len("u-3"); n != 0 {
		t.Errorf("Len(u-3) = %d, want 0", n)
	}
	if n := w.Users(); n != 2 {
		t.Errorf("Users = %d, want 2", n)
	}
}

func TestWindows_ConcurrentAppends(t *testing.T) {
	t.Parallel()

	w := NewWindows()
	const goroutines = 16
	const perGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				snap := w.Append("u-shared", sampleAt(g*perGoroutine+i, 5.0))
				if len(snap) == 0 || len(snap) > WindowMaxLen {
					t.Errorf("snapshot length %d out of bounds", len(snap))
				}
			}
		}(g)
	}
	wg.Wait()

	if n := w.Len("u-shared"); n != WindowMaxLen {
		t.Errorf("Len = %d, want %d after %d appends", n, WindowMaxLen, goroutines*perGoroutine)
	}
}

func TestGlucoseSlope_TooFewSamples(t *testing.T) {
	t.Parallel()

	for _, samples := range [][]Sample{
		nil,
		{sampleAt(0, 7.0)},
		{sampleAt(0, 7.0), sampleAt(5, 6.0)},
	} {
		if _, ok := glucoseSlope(samples); ok {
			t.Errorf("glucoseSlope(%d samples) ok = true, want false", len(samples))
		}
	}
}

func TestGlucoseSlope_ZeroTimeSpan(t *testing.T) {
	t.Parallel()

	samples := []Sample{sampleAt(0, 7.0), sampleAt(0, 6.5), sampleAt(0, 6.0)}
	if _, ok := glucoseSlope(samples); ok {
		t.Error("glucoseSlope over zero span ok = true, want false")
	}
}

func TestGlucoseSlope_LinearDecline(t *testing.T) {
	t.Parallel()

	// Perfect line: 7.0 at t=0, dropping 0.1 mmol/L per minute.
	samples := []Sample{
		sampleAt(0, 7.0),
		sampleAt(5, 6.5),
		sampleAt(10, 6.0),
		sampleAt(15, 5.5),
	}
	slope, ok := glucoseSlope(samples)
	if !ok {
		t.Fatal("glucoseSlope ok = false, want true")
	}
	if math.Abs(slope-(-0.1)) > 1e-9 {
		t.Errorf("slope = %v, want -0.1", slope)
	}
}

func TestGlucoseSlope_FlatLine(t *testing.T) {
	t.Parallel()

	samples := []Sample{sampleAt(0, 5.5), sampleAt(5, 5.5), sampleAt(10, 5.5)}
	slope, ok := glucoseSlope(samples)
	if !ok {
		t.Fatal("glucoseSlope ok = false, want true")
	}
	if math.Abs(slope) > 1e-9 {
		t.Errorf("slope = %v, want 0", slope)
	}
}

func TestGlucoseSlope_NoisyDecline(t *testing.T) {
	t.Parallel()

	// Noisy but clearly declining; regression smooths the bounce.
	samples := []Sample{
		sampleAt(0, 7.2),
		sampleAt(5, 6.4),
		sampleAt(10, 6.6),
		sampleAt(15, 5.6),
	}
	slope, ok := glucoseSlope(samples)
	if !ok {
		t.Fatal("glucoseSlope ok = false, want true")
	}
	if slope >= 0 {
		t.Errorf("slope = %v, want negative", slope)
	}
}
