package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type TaskHandler interface {
	Process(ctx context.Context, task Task) error
}

// StreamClient is the subset of *redis.Client the consumer uses.
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
	XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

var _ StreamClient = (*redis.Client)(nil)

type ConsumerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	// MaxDeliveries caps how often a failing task is handed to the handler.
	// Zero retries forever.
	MaxDeliveries    int64
	DeadLetterStream string
}

type Consumer struct {
	client        StreamClient
	stream        string
	group         string
	consumer      string
	claimInterval time.Duration
	maxDeliveries int64
	deadLetter    string
	logger        zerolog.Logger
	handler       TaskHandler
}

func NewConsumer(client StreamClient, cfg ConsumerConfig, logger zerolog.Logger, handler TaskHandler) *Consumer {
	deadLetter := cfg.DeadLetterStream
	if deadLetter == "" {
		deadLetter = cfg.Stream + ":dead"
	}
	return &Consumer{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumer:      cfg.Consumer,
		claimInterval: cfg.ClaimInterval,
		maxDeliveries: cfg.MaxDeliveries,
		deadLetter:    deadLetter,
		logger:        logger,
		handler:       handler,
	}
}

// EnsureGroup creates the stream and consumer group if they do not exist yet.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.read(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error().Err(err).Msg("stream read error")
				time.Sleep(2 * time.Second)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.claimStalled(ctx); err != nil {
				c.logger.Error().Err(err).Msg("claim stalled failed")
			}
		default:
		}
	}
}

func (c *Consumer) read(ctx context.Context) error {
	result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    10,
		Block:    5 * time.Second,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, stream := range result {
		for _, msg := range stream.Messages {
			c.process(ctx, msg)
		}
	}
	return nil
}

// process acks successful and undecodable messages. Failed tasks stay pending
// and are retried by claimStalled until MaxDeliveries.
func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	task, err := DecodeTask(msg.Values)
	if err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dropping malformed task")
		c.ack(ctx, msg.ID)
		return
	}

	if err := c.handler.Process(ctx, task); err != nil {
		c.logger.Error().
			Err(err).
			Str("message_id", msg.ID).
			Str("task", task.Type).
			Msg("handle task failed")
		return
	}
	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		c.logger.Error().Err(err).Str("message_id", id).Msg("ack failed")
	}
}

func (c *Consumer) claimStalled(ctx context.Context) error {
	msgs, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.claimInterval,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	if len(msgs) == 0 {
		return nil
	}

	deliveries, err := c.deliveries(ctx, msgs)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if c.maxDeliveries > 0 && deliveries[msg.ID] > c.maxDeliveries {
			c.bury(ctx, msg, deliveries[msg.ID])
			continue
		}
		c.process(ctx, msg)
	}
	return nil
}

// deliveries returns the delivery count of each claimed message. XAUTOCLAIM
// has already counted the claim itself.
func (c *Consumer) deliveries(ctx context.Context, msgs []redis.XMessage) (map[string]int64, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   c.stream,
		Group:    c.group,
		Start:    msgs[0].ID,
		End:      msgs[len(msgs)-1].ID,
		Count:    int64(len(msgs)) * 2,
		Consumer: c.consumer,
	}).Result()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(pending))
	for _, p := range pending {
		counts[p.ID] = p.RetryCount
	}
	return counts, nil
}

// bury moves a message that keeps failing to the dead-letter stream and acks it.
func (c *Consumer) bury(ctx context.Context, msg redis.XMessage, deliveries int64) {
	values := make(map[string]interface{}, len(msg.Values)+2)
	for k, v := range msg.Values {
		values[k] = v
	}
	values["source_id"] = msg.ID
	values["deliveries"] = deliveries

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.deadLetter, Values: values}).Err(); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dead-letter task failed")
		return
	}
	c.logger.Warn().
		Str("message_id", msg.ID).
		Int64("deliveries", deliveries).
		Str("stream", c.deadLetter).
		Msg("task moved to dead-letter stream")
	c.ack(ctx, msg.ID)
}
