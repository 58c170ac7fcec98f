package distqueue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// Client wraps an asynq client, grounded on the teacher's redis/client.go.
type Client struct {
	client *asynq.Client
}

// NewClient dials addr and verifies connectivity with a health-check
// enqueue, the same smoke test the teacher's NewClient performs.
func NewClient(addr, password string, db int) (*Client, error) {
	redisOpt := asynq.RedisClientOpt{Addr: addr, Password: password, DB: db}
	client := asynq.NewClient(redisOpt)

	if _, err := client.Enqueue(asynq.NewTask(TypeHealthCheck, nil)); err != nil {
		client.Close()
		return nil, fmt.Errorf("distqueue: connecting to %s: %w", addr, err)
	}

	return &Client{client: client}, nil
}

// EnqueueCapture submits a PagePayload onto the capture queue.
func (c *Client) EnqueueCapture(ctx context.Context, payload PagePayload, opts ...asynq.Option) error {
	task, err := CreateCaptureTask(payload)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("distqueue: enqueue %s: %w", payload.Name, err)
	}
	return nil
}

// Close releases the underlying asynq connection.
func (c *Client) Close() error {
	return c.client.Close()
}
