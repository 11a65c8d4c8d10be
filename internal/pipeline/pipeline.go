package pipeline

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/guardian/internal/telemetry"
)

// Pipeline drives one task through the workflow states. Each stage is
// attempted exactly once; the stage outputs are merged into the shared
// context by the pipeline, never by the stages themselves.
type Pipeline struct {
	investigator *Investigator
	reflector    *Reflector
	communicator *Communicator
	logger       log.Logger
	metrics      *Metrics
}

// New assembles a pipeline from its three stages.
func New(investigator *Investigator, reflector *Reflector, communicator *Communicator, logger log.Logger, metrics *Metrics) *Pipeline {
	if logger == nil {
		logger = log.Nop()
	}
	return &Pipeline{
		investigator: investigator,
		reflector:    reflector,
		communicator: communicator,
		logger:       logger,
		metrics:      metrics,
	}
}

// Run executes the workflow for one task and returns the final context. The
// only error it can return is a validation failure on the task itself; every
// external failure inside a stage degrades to that stage's fallback, so a
// valid task always reaches Terminal with a well-defined context.
func (p *Pipeline) Run(ctx context.Context, task *telemetry.InvestigationTask) (*Context, error) {
	if err := task.Validate(); err != nil {
		p.metrics.observeRun("invalid", 0)
		return nil, err
	}

	start := time.Now()
	L := p.logger.With("user_id", task.UserID, "task_id", task.ID, "trigger_type", task.TriggerType)
	L.Info(ctx, "investigation starting")

	c := NewContext(task)
	for state := StateInvestigator; state != StateTerminal; state = next(state, c) {
		stageStart := time.Now()
		switch state {
		case StateInvestigator:
			c.applyInvestigator(p.investigator.Run(ctx, c))
		case StateReflector:
			c.applyReflector(p.reflector.Run(ctx, c))
		case StateCommunicator:
			c.applyCommunicator(p.communicator.Run(ctx, c))
		}
		p.metrics.observeStage(state, time.Since(stageStart))
	}

	result := "notified"
	if !c.NotificationSent {
		result = "no_action"
	}
	p.metrics.observeRun(result, time.Since(start))

	L.Info(ctx, "investigation complete",
		"risk_level", c.RiskLevel,
		"intervention_action", c.InterventionAction,
		"notification_sent", c.NotificationSent,
		"duration", time.Since(start).Seconds(),
	)
	return c, nil
}
