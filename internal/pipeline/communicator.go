package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// PushSender dispatches generated messages to the user's device.
type PushSender interface {
	SendPush(ctx context.Context, userID, message string) error
}

// Store persists intervention audit records.
type Store interface {
	LogIntervention(ctx context.Context, rec *InterventionRecord) error
}

const (
	communicatorMaxTokens   = 256
	communicatorTemperature = 0.7
)

const communicatorSystemPrompt = `You are the user's health companion. Based on the clinical analysis below, write one push notification.
Requirements:
- Warm, friendly tone; use urgent wording only when risk_level is HIGH
- Give exactly one concrete, actionable suggestion (what to eat, how much)
- Keep it under 80 characters
- You must mention the current glucose value`

// Communicator generates the user-facing message, dispatches it, and records
// the intervention. Generation failure degrades to a deterministic template;
// audit persistence failure is logged and never undoes the sent notification.
type Communicator struct {
	provider Provider
	push     PushSender
	store    Store
	logger   log.Logger
	metrics  *Metrics
}

// NewCommunicator creates the message generation and dispatch stage.
func NewCommunicator(provider Provider, push PushSender, store Store, logger log.Logger, metrics *Metrics) *Communicator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Communicator{
		provider: provider,
		push:     push,
		store:    store,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run generates and sends the message, then persists the audit record.
func (cm *Communicator) Run(ctx context.Context, c *Context) CommunicatorOutput {
	L := cm.logger.With("user_id", c.UserID, "task_id", c.Task.ID)

	message, err := cm.provider.Complete(ctx, communicatorSystemPrompt, buildMessagePrompt(c), communicatorMaxTokens, communicatorTemperature)
	if err != nil {
		L.Error(ctx, err, "message generation failed, using template")
		cm.metrics.incFallback(StateCommunicator)
		message = templateMessage(c.Task.CurrentGlucose)
	}

	if err := cm.push.SendPush(ctx, c.UserID, message); err != nil {
		// Fire and forget: the sink surfaces its own delivery problems.
		L.Error(ctx, err, "push dispatch failed")
	}
	cm.metrics.incNotification()

	rec := &InterventionRecord{
		UserID:      c.UserID,
		TriggeredAt: c.Task.TriggerAt,
		TriggerType: c.Task.TriggerType,
		RiskLevel:   c.RiskLevel,
		Reasoning:   c.ReasoningSummary,
		Action:      c.InterventionAction,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}
	if err := cm.store.LogIntervention(ctx, rec); err != nil {
		L.Error(ctx, err, "intervention audit write failed")
		cm.metrics.incAuditFailure()
	}

	L.Info(ctx, "communicator complete", "message_length", len(message))

	return CommunicatorOutput{
		MessageToUser:    message,
		NotificationSent: true,
	}
}

// buildMessagePrompt assembles the generation input from the reflector's
// decision and the case context.
func buildMessagePrompt(c *Context) string {
	parts := []string{
		fmt.Sprintf("Risk level: %s", c.RiskLevel),
		fmt.Sprintf("Clinical reasoning: %s", c.ReasoningSummary),
		fmt.Sprintf("Intervention type: %s", c.InterventionAction),
		fmt.Sprintf("Current glucose: %.1f mmol/L", c.Task.CurrentGlucose),
		fmt.Sprintf("Location: %s", c.LocationContext),
	}
	if up := c.UpcomingActivity; up != nil {
		parts = append(parts, fmt.Sprintf("Upcoming activity: %s (expected around %02d:00)", up.Type, up.ExpectedStartHour))
	}
	return strings.Join(parts, "\n")
}

// templateMessage is the deterministic fallback: it always names the current
// glucose value and a generic carbohydrate suggestion.
func templateMessage(glucose float64) string {
	return fmt.Sprintf("Your glucose is %.1f mmol/L. Consider a small carbohydrate snack.", glucose)
}
