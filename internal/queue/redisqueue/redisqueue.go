// Package redisqueue provides a Redis-backed implementation of queue.Queue
// using a list as the transport (LPUSH producer, BRPOP consumer). Workers in
// separate processes consume the same list, giving at-least-once handoff from
// the gateway to the pipeline.
package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/linnemanlabs/guardian/internal/queue"
	"github.com/linnemanlabs/guardian/internal/telemetry"
)

const (
	// DefaultKey is the list key investigation tasks travel on.
	DefaultKey = "guardian:investigations"

	// popTimeout bounds each BRPOP so Dequeue can notice ctx cancellation.
	popTimeout = 5 * time.Second

	connectTimeout = 2 * time.Second
)

// Queue transports tasks through a Redis list.
type Queue struct {
	client *redis.Client
	key    string
}

// New connects to Redis at the given URL and returns a ready queue. The key
// falls back to DefaultKey when empty.
func New(redisURL, key string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redisqueue: parse url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisqueue: ping: %w", err)
	}

	if key == "" {
		key = DefaultKey
	}
	return &Queue{client: client, key: key}, nil
}

// Enqueue pushes the serialized task onto the list.
func (q *Queue) Enqueue(ctx context.Context, task *telemetry.InvestigationTask) error {
	data, err := queue.Encode(task)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("redisqueue: lpush: %w", err)
	}
	return nil
}

// Dequeue blocks on BRPOP until a task arrives or ctx is done. A task that
// fails to decode is dropped with an error; the list is not poisoned by it.
func (q *Queue) Dequeue(ctx context.Context) (*telemetry.InvestigationTask, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := q.client.BRPop(ctx, popTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, redis.ErrClosed) {
				return nil, queue.ErrClosed
			}
			return nil, fmt.Errorf("redisqueue: brpop: %w", err)
		}

		// BRPOP returns [key, value].
		if len(res) != 2 {
			return nil, fmt.Errorf("redisqueue: unexpected brpop reply of %d elements", len(res))
		}
		return queue.Decode([]byte(res[1]))
	}
}

// Close shuts down the Redis client.
func (q *Queue) Close() error {
	return q.client.Close()
}
