package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) Enqueue(ctx context.Context, task Task) error {
	if _, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: task.values(),
	}).Result(); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type, err)
	}
	return nil
}

// Inline runs tasks in the calling goroutine. It stands in for the stream
// when the API runs without Redis.
type Inline struct {
	handler TaskHandler
}

func NewInline(handler TaskHandler) *Inline {
	return &Inline{handler: handler}
}

func (q *Inline) Enqueue(ctx context.Context, task Task) error {
	return q.handler.Process(ctx, task)
}
