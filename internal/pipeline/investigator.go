package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/guardian/internal/contextsvc"
)

// LocationResolver resolves GPS coordinates to a semantic location.
type LocationResolver interface {
	Resolve(ctx context.Context, userID string, lat, lng float64) (*contextsvc.Location, error)
}

// HistoryResolver resolves patient history for a reference time.
type HistoryResolver interface {
	Resolve(ctx context.Context, userID string, referenceTime time.Time) (*contextsvc.History, error)
}

// fallbackLocation substitutes for a failed location call.
const fallbackLocation = "unknown location"

// Investigator gathers context by fanning out to the two providers
// concurrently. Each call is bounded by its own timeout and degrades to a
// fixed fallback independently of the other; the stage itself never fails.
type Investigator struct {
	location LocationResolver
	history  HistoryResolver
	logger   log.Logger
	metrics  *Metrics
}

// NewInvestigator creates the context-gathering stage.
func NewInvestigator(location LocationResolver, history HistoryResolver, logger log.Logger, metrics *Metrics) *Investigator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Investigator{
		location: location,
		history:  history,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run issues both provider calls concurrently and joins them. Total stage
// latency is the max of the two calls, not the sum. The returned output is
// always fully populated: location text is never empty and the glucose
// history is a non-nil (possibly empty) slice.
func (i *Investigator) Run(ctx context.Context, c *Context) InvestigatorOutput {
	task := c.Task
	L := i.logger.With("user_id", c.UserID, "task_id", task.ID)

	var (
		wg  sync.WaitGroup
		loc *contextsvc.Location
		his *contextsvc.History
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(ctx, contextsvc.CallTimeout)
		defer cancel()
		res, err := i.location.Resolve(cctx, task.UserID, task.GPSLat, task.GPSLng)
		if err != nil {
			L.Warn(ctx, "location resolution failed, using fallback", "error", err)
			i.metrics.incFallback(StateInvestigator)
			return
		}
		loc = res
	}()
	go func() {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(ctx, contextsvc.CallTimeout)
		defer cancel()
		res, err := i.history.Resolve(cctx, task.UserID, task.TriggerAt)
		if err != nil {
			L.Warn(ctx, "history resolution failed, using fallback", "error", err)
			i.metrics.incFallback(StateInvestigator)
			return
		}
		his = res
	}()
	wg.Wait()

	out := InvestigatorOutput{
		LocationContext:     fallbackLocation,
		GlucoseHistory24h:   []contextsvc.GlucoseRecord{},
		RecentExerciseDrops: []float64{},
	}
	if loc != nil && loc.SemanticLocation != "" {
		out.LocationContext = loc.SemanticLocation
	}
	if his != nil {
		if his.GlucoseHistory24h != nil {
			out.GlucoseHistory24h = his.GlucoseHistory24h
		}
		out.UpcomingActivity = his.UpcomingActivity
		if his.RecentExerciseDrops != nil {
			out.RecentExerciseDrops = his.RecentExerciseDrops
		}
	}

	L.Info(ctx, "investigator complete",
		"location", out.LocationContext,
		"history_records", len(out.GlucoseHistory24h),
		"has_upcoming_activity", out.UpcomingActivity != nil,
	)
	return out
}
