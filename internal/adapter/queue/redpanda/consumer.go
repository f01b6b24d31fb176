package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
	"github.com/fairyhunter13/immigration-assistant/internal/observability"
)

// TaskHandler processes one evaluation task. A returned error marks the task
// failed; the record is still committed (evaluation is best-effort quality
// logging, not a transactional workload).
type TaskHandler func(ctx context.Context, task domain.EvaluationTask) error

// Consumer polls evaluation tasks and hands them to a TaskHandler one at a
// time. Sequential handling makes the worker the single writer of the
// feedback log.
type Consumer struct {
	client  *kgo.Client
	topic   string
	handler TaskHandler
}

// NewConsumer constructs a Consumer in the given consumer group.
func NewConsumer(brokers []string, groupID string, handler TaskHandler) (*Consumer, error) {
	return NewConsumerWithTopic(brokers, groupID, TopicEvaluations, handler)
}

// NewConsumerWithTopic constructs a Consumer for a specific topic; tests use
// unique topics for isolation.
func NewConsumerWithTopic(brokers []string, groupID, topic string, handler TaskHandler) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if groupID == "" {
		return nil, fmt.Errorf("missing required group ID")
	}
	if handler == nil {
		return nil, fmt.Errorf("missing task handler")
	}
	slog.Info("creating redpanda consumer",
		slog.Any("brokers", brokers),
		slog.String("group_id", groupID),
		slog.String("topic", topic))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}
	if err := createTopicIfNotExists(context.Background(), client, topic, 1, 1); err != nil {
		slog.Warn("failed to create topic, it may already exist",
			slog.String("topic", topic), slog.Any("error", err))
	}
	return &Consumer{client: client, topic: topic, handler: handler}, nil
}

// Run polls until ctx is cancelled. Individual task failures are logged and
// counted; they never stop the loop.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("consumer loop starting", slog.String("topic", c.topic))
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				if fe.Err == context.Canceled {
					return context.Canceled
				}
				slog.Error("fetch error",
					slog.String("topic", fe.Topic),
					slog.Int("partition", int(fe.Partition)),
					slog.Any("error", fe.Err))
			}
			continue
		}
		fetches.EachRecord(func(rec *kgo.Record) {
			c.processRecord(ctx, rec)
		})
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			slog.Error("offset commit failed", slog.Any("error", err))
		}
	}
}

func (c *Consumer) processRecord(ctx context.Context, rec *kgo.Record) {
	var task domain.EvaluationTask
	if err := json.Unmarshal(rec.Value, &task); err != nil {
		slog.Error("malformed evaluation task dropped",
			slog.Int64("offset", rec.Offset),
			slog.Any("error", err))
		observability.EvaluationTasksTotal.WithLabelValues("malformed").Inc()
		return
	}
	if err := c.handler(ctx, task); err != nil {
		slog.Error("evaluation task failed",
			slog.Int64("offset", rec.Offset),
			slog.Any("error", err))
		observability.EvaluationTasksTotal.WithLabelValues("failed").Inc()
		return
	}
	observability.EvaluationTasksTotal.WithLabelValues("completed").Inc()
}

// Close releases the underlying client.
func (c *Consumer) Close() error {
	c.client.Close()
	return nil
}
