package pipeline

import (
	"time"

	"github.com/linnemanlabs/guardian/internal/contextsvc"
	"github.com/linnemanlabs/guardian/internal/telemetry"
)

// State identifies a workflow stage.
type State string

const (
	// StateInvestigator gathers context from the two providers.
	StateInvestigator State = "investigator"

	// StateReflector classifies clinical risk.
	StateReflector State = "reflector"

	// StateCommunicator generates and dispatches the user message.
	StateCommunicator State = "communicator"

	// StateTerminal ends the workflow.
	StateTerminal State = "terminal"
)

// RiskLevel is the Reflector's clinical risk classification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Action is the intervention the Reflector selects.
type Action string

const (
	ActionNone        Action = "NO_ACTION"
	ActionSoftRemind  Action = "SOFT_REMIND"
	ActionStrongAlert Action = "STRONG_ALERT"
)

// Context is the shared record threaded through the workflow. Fields are
// append-only: each stage owns a fixed subset, written once by the merge in
// Run and never cleared or overwritten by a later stage.
type Context struct {
	Task   *telemetry.InvestigationTask
	UserID string

	// Investigator outputs.
	LocationContext     string
	GlucoseHistory24h   []contextsvc.GlucoseRecord
	UpcomingActivity    *contextsvc.UpcomingActivity
	RecentExerciseDrops []float64

	// Reflector outputs.
	RiskLevel          RiskLevel
	ReasoningSummary   string
	InterventionAction Action

	// Communicator outputs.
	MessageToUser    string
	NotificationSent bool
}

// NewContext creates the initial workflow context for a task.
func NewContext(task *telemetry.InvestigationTask) *Context {
	return &Context{Task: task, UserID: task.UserID}
}

// InvestigatorOutput is the field subset owned by the Investigator stage.
type InvestigatorOutput struct {
	LocationContext     string
	GlucoseHistory24h   []contextsvc.GlucoseRecord
	UpcomingActivity    *contextsvc.UpcomingActivity
	RecentExerciseDrops []float64
}

// ReflectorOutput is the field subset owned by the Reflector stage.
type ReflectorOutput struct {
	RiskLevel          RiskLevel `json:"risk_level"`
	ReasoningSummary   string    `json:"reasoning_summary"`
	InterventionAction Action    `json:"intervention_action"`
}

// CommunicatorOutput is the field subset owned by the Communicator stage.
type CommunicatorOutput struct {
	MessageToUser    string
	NotificationSent bool
}

func (c *Context) applyInvestigator(out InvestigatorOutput) {
	c.LocationContext = out.LocationContext
	c.GlucoseHistory24h = out.GlucoseHistory24h
	c.UpcomingActivity = out.UpcomingActivity
	c.RecentExerciseDrops = out.RecentExerciseDrops
}

func (c *Context) applyReflector(out ReflectorOutput) {
	c.RiskLevel = out.RiskLevel
	c.ReasoningSummary = out.ReasoningSummary
	c.InterventionAction = out.InterventionAction
}

func (c *Context) applyCommunicator(out CommunicatorOutput) {
	c.MessageToUser = out.MessageToUser
	c.NotificationSent = out.NotificationSent
}

// next is the workflow transition function. The single conditional edge sits
// after the Reflector: NO_ACTION short-circuits to Terminal.
func next(state State, c *Context) State {
	switch state {
	case StateInvestigator:
		return StateReflector
	case StateReflector:
		if c.InterventionAction == ActionNone {
			return StateTerminal
		}
		return StateCommunicator
	default:
		return StateTerminal
	}
}

// InterventionRecord is the audit entry persisted after a completed
// Communicator stage.
type InterventionRecord struct {
	UserID      string
	TriggeredAt time.Time
	TriggerType telemetry.TriggerType
	RiskLevel   RiskLevel
	Reasoning   string
	Action      Action
	Message     string
	CreatedAt   time.Time
}
