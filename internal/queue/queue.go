// Package queue defines the transport that hands investigation tasks from
// the trigger engine to pipeline workers. The core only assumes at-least-once
// delivery; the concrete transport is chosen in main.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linnemanlabs/guardian/internal/telemetry"
)

// ErrClosed is returned by transports once Close has been called and, for
// Dequeue, the backlog is drained.
var ErrClosed = errors.New("queue: closed")

// Queue is the task transport interface.
type Queue interface {
	// Enqueue serializes the task and hands it to the transport.
	Enqueue(ctx context.Context, task *telemetry.InvestigationTask) error

	// Dequeue blocks until a task is available or ctx is done.
	Dequeue(ctx context.Context) (*telemetry.InvestigationTask, error)

	// Close releases transport resources.
	Close() error
}

// Encode serializes a task for transport.
func Encode(task *telemetry.InvestigationTask) ([]byte, error) {
	b, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("queue: encode task: %w", err)
	}
	return b, nil
}

// Decode deserializes a task from the transport.
func Decode(data []byte) (*telemetry.InvestigationTask, error) {
	var task telemetry.InvestigationTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("queue: decode task: %w", err)
	}
	return &task, nil
}
