package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const kafkaWriteTimeout = 10 * time.Second

// KafkaNotifier publishes commit notifications to a Kafka topic. Messages
// are keyed by prompt_id so commits for one prompt land on one partition.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(brokers, topic string) *KafkaNotifier {
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: kafkaWriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &KafkaNotifier{writer: writer}
}

func (k *KafkaNotifier) Name() string {
	return "kafka"
}

func (k *KafkaNotifier) Notify(ctx context.Context, n Notification) error {
	value, err := json.Marshal(webhookPayload{
		PromptID:   n.PromptID,
		PromptName: n.PromptName,
		CommitHash: n.CommitHash,
		CreatedBy:  n.CreatedBy,
		CommitURL:  n.CommitURL,
		Body:       n.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal kafka payload: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(n.PromptID),
		Value: value,
		Time:  time.Now(),
	}

	if err := k.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
