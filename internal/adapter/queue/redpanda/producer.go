package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
	"github.com/fairyhunter13/immigration-assistant/pkg/textx"
)

// Producer wraps a Kafka producer and implements domain.Queue.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer constructs a Producer and ensures the evaluations topic exists.
func NewProducer(brokers []string) (*Producer, error) {
	return NewProducerWithTopic(brokers, TopicEvaluations)
}

// NewProducerWithTopic constructs a Producer for a specific topic; tests use
// unique topics for isolation.
func NewProducerWithTopic(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	slog.Info("creating redpanda producer", slog.Any("brokers", brokers), slog.String("topic", topic))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}

	if err := createTopicIfNotExists(context.Background(), client, topic, 1, 1); err != nil {
		slog.Warn("failed to create topic, it may already exist",
			slog.String("topic", topic), slog.Any("error", err))
	}
	return &Producer{client: client, topic: topic}, nil
}

// EnqueueEvaluation publishes an evaluation task and waits for the ack.
func (p *Producer) EnqueueEvaluation(ctx domain.Context, task domain.EvaluationTask) (string, error) {
	b, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("op=queue.marshal: %w", err)
	}
	rec := &kgo.Record{Topic: p.topic, Key: []byte(task.Question), Value: b}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return "", fmt.Errorf("op=queue.produce: %w", err)
	}
	slog.Info("evaluation task enqueued",
		slog.String("topic", p.topic),
		slog.String("question", textx.Snippet(task.Question, 50)),
		slog.String("language", task.Language))
	return fmt.Sprintf("%s/%d/%d", p.topic, rec.Partition, rec.Offset), nil
}

// Ping verifies broker connectivity; used by readiness checks.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes and releases the underlying client.
func (p *Producer) Close() error {
	p.client.Close()
	return nil
}
