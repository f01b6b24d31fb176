// Package redpanda provides Redpanda/Kafka queue integration for evaluation
// tasks handed from the API process to the worker process.
package redpanda

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// TopicEvaluations is the Kafka topic carrying evaluation tasks.
const TopicEvaluations = "answer-evaluations"

// createTopicIfNotExists creates a topic, treating "already exists" as success.
func createTopicIfNotExists(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	if topic == "" {
		return fmt.Errorf("topic name cannot be empty")
	}

	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 30000

	topicReq := kmsg.NewCreateTopicsRequestTopic()
	topicReq.Topic = topic
	topicReq.NumPartitions = partitions
	topicReq.ReplicationFactor = replicationFactor
	req.Topics = append(req.Topics, topicReq)

	resp, err := client.Request(ctx, &req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	createResp, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	for _, t := range createResp.Topics {
		if t.ErrorCode != 0 {
			// Error code 36 = TOPIC_ALREADY_EXISTS.
			if t.ErrorCode == 36 {
				slog.Info("topic already exists", slog.String("topic", t.Topic))
				return nil
			}
			errorMsg := ""
			if t.ErrorMessage != nil {
				errorMsg = *t.ErrorMessage
			}
			return fmt.Errorf("create topic error: %s (code %d)", errorMsg, t.ErrorCode)
		}
	}
	return nil
}
