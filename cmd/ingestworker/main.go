// Command ingestworker drains the ingest-log Redis stream and persists
// each message durably, decoupling POST /ingest and POST /stt_result from
// database latency. Grounded on the teacher's worker process shape
// (cmd/worker, internal/worker.Worker), rebuilt around the ingestqueue
// consumer instead of the event-log reconciliation loop it originally ran.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eyeofterror.app/orchestrator/common/id"
	"eyeofterror.app/orchestrator/common/logger"
	"eyeofterror.app/orchestrator/common/otel"
	"eyeofterror.app/orchestrator/core/config"
	"eyeofterror.app/orchestrator/core/db"
	"eyeofterror.app/orchestrator/internal/ingestqueue"
	"eyeofterror.app/orchestrator/internal/ingeststore"
	"github.com/redis/go-redis/v9"
)

const (
	batchSize    = 32
	blockFor     = 5 * time.Second
	maxAttempts  = 5
	requeueDelay = 2 * time.Second
)

func main() {
	ctx := context.Background()

	cfg := config.Load()

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)

	slog.Info("ingestworker starting", "env", cfg.Env)

	if err := id.Init(2); err != nil {
		slog.Error("failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	store := ingeststore.New(database.Pool())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	hostname, _ := os.Hostname()
	consumer, err := ingestqueue.NewRedisConsumer(redisClient, ingestqueue.ConsumerConfig{
		Stream:       cfg.Redis.Stream,
		Group:        cfg.Redis.Group,
		Consumer:     fmt.Sprintf("ingestworker-%s", hostname),
		DLQStream:    cfg.Redis.DLQ,
		BatchSize:    batchSize,
		Block:        blockFor,
		MaxAttempts:  maxAttempts,
		RequeueDelay: requeueDelay,
	})
	if err != nil {
		slog.Error("failed to start ingest consumer", "error", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go runLoop(ctx, consumer, store, stop, done)

	<-done

	if telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown error", "error", err)
		}
	}

	slog.Info("ingestworker stopped")
}

func runLoop(ctx context.Context, consumer *ingestqueue.RedisConsumer, store *ingeststore.Store, stop <-chan os.Signal, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		messages, err := consumer.Read(ctx)
		if err != nil {
			slog.Error("ingest read error", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, m := range messages {
			msgCtx := logger.WithLogFields(ctx, logger.LogFields{
				MessageID: logger.Ptr(m.ID),
				Component: "orchestrator.ingestworker",
			})

			if _, err := store.Insert(msgCtx, m.Msg.Module, m.Msg.Text, string(m.Msg.Source)); err != nil {
				slog.ErrorContext(msgCtx, "ingest persist failed, requeuing", "error", err)
				if reqErr := consumer.Requeue(msgCtx, m, err.Error()); reqErr != nil {
					slog.ErrorContext(msgCtx, "ingest requeue failed", "error", reqErr)
				}
				continue
			}
			if err := consumer.Ack(msgCtx, m.ID); err != nil {
				slog.ErrorContext(msgCtx, "ingest ack failed", "error", err)
			}
		}
	}
}
