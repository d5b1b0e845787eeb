// Package ingestqueue implements the at-least-once Redis Streams queue
// backing the supplemental ingest-log subsystem (SPEC_FULL §12). Grounded
// on the teacher's internal/queue (producer.go/consumer.go), generalized
// from its issue-event task shape to a single ingest-log Message.
package ingestqueue

import (
	"context"
	"fmt"
	"log/slog"

	"eyeofterror.app/orchestrator/common/logger"
	"github.com/redis/go-redis/v9"
)

// Producer enqueues ingest-log messages onto a Redis stream.
type Producer interface {
	Enqueue(ctx context.Context, msg Message) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
}

// NewRedisProducer builds a Producer writing to stream.
func NewRedisProducer(client *redis.Client, stream string) Producer {
	return &redisProducer{client: client, stream: stream}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "orchestrator.ingestqueue.producer"})

	attempt := msg.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	values := map[string]any{
		"module":  msg.Module,
		"text":    msg.Text,
		"source":  string(msg.Source),
		"attempt": attempt,
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue ingest message (stream=%s): %w", p.stream, err)
	}

	slog.InfoContext(ctx, "enqueued ingest message",
		"module", msg.Module,
		"source", msg.Source,
		"attempt", attempt,
		"stream", p.stream)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
