package ingestqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"eyeofterror.app/orchestrator/common/logger"
	"github.com/redis/go-redis/v9"
)

// ConsumerConfig configures a RedisConsumer's polling and retry behavior.
type ConsumerConfig struct {
	Stream       string
	Group        string
	Consumer     string
	DLQStream    string
	BatchSize    int64
	Block        time.Duration
	MaxAttempts  int
	RequeueDelay time.Duration
}

// ReadMessage is one dequeued ingest-log entry, carrying its stream ID
// alongside the parsed Message for Ack/Requeue/SendDLQ.
type ReadMessage struct {
	ID  string
	Msg Message
	Raw redis.XMessage
}

// RedisConsumer reads ingest-log messages from a Redis stream consumer
// group, acking on success and requeuing (up to MaxAttempts) or moving to
// the dead-letter stream on failure.
type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

// NewRedisConsumer builds a RedisConsumer and ensures its consumer group
// exists, creating the stream if needed.
func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	c := &RedisConsumer{client: client, cfg: cfg}
	if err := c.ensureGroup(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	if err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err(); err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Read polls for new messages, parsing each and acking unparseable entries
// immediately (they can never succeed on retry).
func (c *RedisConsumer) Read(ctx context.Context) ([]ReadMessage, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "orchestrator.ingestqueue.consumer"})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var out []ReadMessage
	for _, stream := range streams {
		for _, raw := range stream.Messages {
			msg, attempt, parseErr := parseMessage(raw)
			if parseErr != nil {
				slog.ErrorContext(ctx, "failed to parse ingest message",
					"error", parseErr, "raw_message_id", raw.ID, "stream", c.cfg.Stream)
				_ = c.Ack(ctx, raw.ID)
				continue
			}
			msg.Attempt = attempt
			out = append(out, ReadMessage{ID: raw.ID, Msg: msg, Raw: raw})
		}
	}

	if len(out) > 0 {
		slog.DebugContext(ctx, "read ingest messages", "count", len(out), "stream", c.cfg.Stream)
	}
	return out, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

// Requeue acks the current delivery and re-adds the message with an
// incremented attempt count, or sends it to the dead-letter stream once
// MaxAttempts is exhausted.
func (c *RedisConsumer) Requeue(ctx context.Context, m ReadMessage, errMsg string) error {
	if err := c.Ack(ctx, m.ID); err != nil {
		return fmt.Errorf("acking failed message for requeue: %w", err)
	}

	nextAttempt := m.Msg.Attempt + 1
	if c.cfg.MaxAttempts > 0 && nextAttempt > c.cfg.MaxAttempts {
		return c.sendDLQ(ctx, m, errMsg)
	}

	if c.cfg.RequeueDelay > 0 {
		time.Sleep(c.cfg.RequeueDelay)
	}

	values := map[string]any{
		"module":     m.Msg.Module,
		"text":       m.Msg.Text,
		"source":     string(m.Msg.Source),
		"attempt":    nextAttempt,
		"last_error": errMsg,
	}
	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.Stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	slog.InfoContext(ctx, "ingest message requeued", "next_attempt", nextAttempt, "reason", errMsg)
	return nil
}

func (c *RedisConsumer) sendDLQ(ctx context.Context, m ReadMessage, errMsg string) error {
	values := map[string]any{
		"module": m.Msg.Module,
		"text":   m.Msg.Text,
		"source": string(m.Msg.Source),
		"error":  errMsg,
	}
	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.DLQStream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}
	slog.ErrorContext(ctx, "ingest message sent to DLQ", "final_error", errMsg, "dlq_stream", c.cfg.DLQStream)
	return nil
}

func parseMessage(raw redis.XMessage) (Message, int, error) {
	module, _ := raw.Values["module"].(string)
	text, _ := raw.Values["text"].(string)
	source, _ := raw.Values["source"].(string)

	if text == "" {
		return Message{}, 0, fmt.Errorf("missing text")
	}

	attempt := 0
	if v, ok := raw.Values["attempt"]; ok {
		n, err := strconv.Atoi(fmt.Sprint(v))
		if err == nil {
			attempt = n
		}
	}

	return Message{Module: module, Text: text, Source: Source(source)}, attempt, nil
}
