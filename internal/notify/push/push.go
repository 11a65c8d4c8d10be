// Package push delivers user-facing notifications through the escalation
// webhook: emergency alerts from hard triggers and intervention messages from
// the communicator stage.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

const httpTimeout = 10 * time.Second

// Kind distinguishes the two notification channels on the wire.
type Kind string

const (
	// KindEmergency is an immediate alert from a hard trigger.
	KindEmergency Kind = "emergency"

	// KindMessage is a generated intervention message.
	KindMessage Kind = "message"
)

// Notifier posts notifications to the escalation webhook. If webhookURL is
// empty every send is a no-op, which keeps dev deployments quiet.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates an escalation webhook notifier.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

type payload struct {
	UserID string `json:"user_id"`
	Kind   Kind   `json:"kind"`
	Text   string `json:"text"`
	SentAt string `json:"sent_at"`
}

// SendEmergencyAlert posts an emergency alert for the user.
func (n *Notifier) SendEmergencyAlert(ctx context.Context, userID, reason string) error {
	return n.send(ctx, payload{
		UserID: userID,
		Kind:   KindEmergency,
		Text:   reason,
		SentAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// SendPush posts a generated intervention message for the user.
func (n *Notifier) SendPush(ctx context.Context, userID, message string) error {
	return n.send(ctx, payload{
		UserID: userID,
		Kind:   KindMessage,
		Text:   message,
		SentAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (n *Notifier) send(ctx context.Context, p payload) error {
	if n.webhookURL == "" {
		n.logger.Info(ctx, "push webhook not configured, dropping notification",
			"user_id", p.UserID, "kind", p.Kind)
		return nil
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("push: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("push: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("push: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
