package stream

import (
	"context"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// messageProducer is the slice of the kafka producer the dead-letter path
// uses, narrowed for tests.
type messageProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// DeadLetter publishes undecodable messages to a per-topic dead-letter
// topic. Delivery is confirmed before the caller commits the original
// offset, so a poison message is never lost between the two.
type DeadLetter struct {
	producer messageProducer
	suffix   string
	log      *zap.Logger
}

func NewDeadLetter(bootstrapServers, suffix string, log *zap.Logger) (*DeadLetter, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": bootstrapServers,
		"acks":              "all",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dead-letter producer: %w", err)
	}

	log.Info("Dead-letter producer created", zap.String("suffix", suffix))

	return &DeadLetter{producer: producer, suffix: suffix, log: log}, nil
}

// Publish sends the raw message to <topic><suffix> and waits for the
// delivery report.
func (d *DeadLetter) Publish(ctx context.Context, topic string, msg *kafka.Message) error {
	target := topic + d.suffix
	deliveryChan := make(chan kafka.Event, 1)

	err := d.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &target, Partition: kafka.PartitionAny},
		Key:            msg.Key,
		Value:          msg.Value,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("failed to produce to dead-letter topic %s: %w", target, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-deliveryChan:
		report, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %T for %s", e, target)
		}
		if report.TopicPartition.Error != nil {
			return fmt.Errorf("dead-letter delivery to %s failed: %w", target, report.TopicPartition.Error)
		}
	}

	d.log.Warn("Routed message to dead-letter topic",
		zap.String("topic", target))
	return nil
}

// Close flushes outstanding deliveries and releases the producer.
func (d *DeadLetter) Close() {
	d.producer.Flush(5000)
	d.producer.Close()
}
