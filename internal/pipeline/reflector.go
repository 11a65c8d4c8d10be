package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

// Provider is the interface for the LLM backend used by the Reflector and
// Communicator stages.
type Provider interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int64, temperature float64) (string, error)
}

const (
	reflectorMaxTokens   = 512
	reflectorTemperature = 0.1

	// FallbackReasoning is the reasoning text of the deterministic fallback
	// applied when the classifier is unavailable or returns garbage.
	FallbackReasoning = "classifier unavailable, rule-based fallback applied"
)

const reflectorSystemPrompt = `You are a diabetes management assistant performing clinical risk assessment. Follow these guidelines strictly:
1. Hypoglycemia grading: Level 1 (3.0-3.9 mmol/L), Level 2 (<3.0), Level 3 (<2.8 with symptoms)
2. Safe pre-exercise glucose range: 5.6-10.0 mmol/L for high-intensity activity
3. Your role is prevention, not diagnosis
4. Output ONLY the following JSON object with no additional text:
   {
     "risk_level": "LOW" | "MEDIUM" | "HIGH",
     "reasoning_summary": "...",
     "intervention_action": "NO_ACTION" | "SOFT_REMIND" | "STRONG_ALERT"
   }`

// Reflector performs the clinical risk classification. A transport failure or
// unparseable classifier output yields the fixed fallback triple, so the
// workflow always has a well-formed action to route on.
type Reflector struct {
	provider Provider
	logger   log.Logger
	metrics  *Metrics
}

// NewReflector creates the risk classification stage.
func NewReflector(provider Provider, logger log.Logger, metrics *Metrics) *Reflector {
	if logger == nil {
		logger = log.Nop()
	}
	return &Reflector{
		provider: provider,
		logger:   logger,
		metrics:  metrics,
	}
}

// fallback is the deterministic result used when classification fails.
func (r *Reflector) fallback() ReflectorOutput {
	return ReflectorOutput{
		RiskLevel:          RiskMedium,
		ReasoningSummary:   FallbackReasoning,
		InterventionAction: ActionSoftRemind,
	}
}

// Run classifies the case built from the task vitals and investigator
// context. It never fails; every error path returns the fallback.
func (r *Reflector) Run(ctx context.Context, c *Context) ReflectorOutput {
	L := r.logger.With("user_id", c.UserID, "task_id", c.Task.ID)

	raw, err := r.provider.Complete(ctx, reflectorSystemPrompt, buildCasePrompt(c), reflectorMaxTokens, reflectorTemperature)
	if err != nil {
		L.Error(ctx, err, "classifier call failed, applying fallback")
		r.metrics.incFallback(StateReflector)
		return r.fallback()
	}

	out, err := parseClassification(raw)
	if err != nil {
		L.Error(ctx, err, "classifier output unparseable, applying fallback", "raw", truncateForLog(raw))
		r.metrics.incFallback(StateReflector)
		return r.fallback()
	}

	L.Info(ctx, "reflector complete",
		"risk_level", out.RiskLevel,
		"intervention_action", out.InterventionAction,
	)
	return out
}

// buildCasePrompt assembles the natural-language case summary the classifier
// sees: current vitals, trigger, location, and the investigator's findings.
func buildCasePrompt(c *Context) string {
	task := c.Task
	parts := []string{
		fmt.Sprintf("Current glucose: %.1f mmol/L", task.CurrentGlucose),
		fmt.Sprintf("Current heart rate: %d bpm", task.CurrentHR),
		fmt.Sprintf("Trigger type: %s", task.TriggerType),
		fmt.Sprintf("Trigger notes: %s", task.ContextNotes),
		fmt.Sprintf("Location: %s", c.LocationContext),
	}

	if len(c.GlucoseHistory24h) > 0 {
		history, _ := json.Marshal(c.GlucoseHistory24h)
		parts = append(parts, fmt.Sprintf("24h glucose history (%d records): %s", len(c.GlucoseHistory24h), history))
	}
	if up := c.UpcomingActivity; up != nil {
		parts = append(parts, fmt.Sprintf("Upcoming activity: %s, probability=%.2f, avg glucose drop=%.2f mmol/L",
			up.Type, up.Probability, up.AvgGlucoseDrop))
	}
	if len(c.RecentExerciseDrops) > 0 {
		parts = append(parts, fmt.Sprintf("Recent exercise glucose drops: %v", c.RecentExerciseDrops))
	}

	return strings.Join(parts, "\n")
}

// parseClassification parses the classifier's JSON output and validates both
// enumerations. Anything out of contract is an error.
func parseClassification(raw string) (ReflectorOutput, error) {
	var out ReflectorOutput
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &out); err != nil {
		return out, fmt.Errorf("parse classification: %w", err)
	}

	switch out.RiskLevel {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		return out, fmt.Errorf("parse classification: invalid risk_level %q", out.RiskLevel)
	}
	switch out.InterventionAction {
	case ActionNone, ActionSoftRemind, ActionStrongAlert:
	default:
		return out, fmt.Errorf("parse classification: invalid intervention_action %q", out.InterventionAction)
	}
	return out, nil
}

// stripCodeFence removes a surrounding markdown code fence if present.
// Models occasionally wrap the JSON despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncateForLog(s string) string {
	const limit = 256
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
