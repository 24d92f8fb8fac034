package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/config"
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/domain"
)

const testTopic = "postgres.public.advertiser"

func testKafkaConfig() config.Kafka {
	return config.Kafka{
		BootstrapServers: "localhost:9092",
		GroupID:          "test-group",
		Topics:           []string{testTopic},
		PollTimeoutMs:    10,
	}
}

type fakeMessageConsumer struct {
	committed []*kafka.Message
}

func (f *fakeMessageConsumer) Subscribe(topic string, cb kafka.RebalanceCb) error { return nil }

func (f *fakeMessageConsumer) ReadMessage(timeout time.Duration) (*kafka.Message, error) {
	return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
}

func (f *fakeMessageConsumer) CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error) {
	f.committed = append(f.committed, m)
	return nil, nil
}

func (f *fakeMessageConsumer) Close() error { return nil }

type fakeDeadLetter struct {
	published []*kafka.Message
	err       error
}

func (f *fakeDeadLetter) Publish(ctx context.Context, topic string, msg *kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func advertiserCreateMessage() *kafka.Message {
	topic := testTopic
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic},
		Value: []byte(`{
			"op": "c",
			"before": null,
			"after": {"id": 7, "name": "Acme Media", "updated_at": 1740830400000000, "created_at": 1740830400000000},
			"source": {"table": "advertiser", "ts_ms": 1740830400123}
		}`),
	}
}

func malformedMessage() *kafka.Message {
	topic := testTopic
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic},
		Value:          []byte(`{"op": "c", "after": {"id":`),
	}
}

func TestConsumer_HandleMessage_CommitsAfterWrite(t *testing.T) {
	writer := new(MockWriter)
	writer.On("InsertAdvertisers", mock.Anything, mock.Anything).Return(1, nil).Once()

	consumer := NewConsumer(testKafkaConfig(), NewProcessor(writer, zap.NewNop()), nil, zap.NewNop())
	mc := &fakeMessageConsumer{}

	err := consumer.handleMessage(context.Background(), testTopic, advertiserCreateMessage(), mc)

	assert.NoError(t, err)
	assert.Len(t, mc.committed, 1)
	assert.Equal(t, int64(1), consumer.Stats()[testTopic].Processed)
	writer.AssertExpectations(t)
}

func TestConsumer_HandleMessage_WriteFailureWithholdsCommit(t *testing.T) {
	writer := new(MockWriter)
	writeErr := &domain.WriteError{Table: "dim_advertiser", Err: errors.New("rejected")}
	// First attempt fails, the retry lands.
	writer.On("InsertAdvertisers", mock.Anything, mock.Anything).Return(0, writeErr).Once()
	writer.On("InsertAdvertisers", mock.Anything, mock.Anything).Return(1, nil).Once()

	consumer := NewConsumer(testKafkaConfig(), NewProcessor(writer, zap.NewNop()), nil, zap.NewNop())
	mc := &fakeMessageConsumer{}

	err := consumer.handleMessage(context.Background(), testTopic, advertiserCreateMessage(), mc)

	assert.NoError(t, err)
	assert.Len(t, mc.committed, 1)
	writer.AssertExpectations(t)
}

func TestConsumer_HandleMessage_WriteFailureStopsOnCancel(t *testing.T) {
	writer := new(MockWriter)
	writeErr := &domain.WriteError{Table: "dim_advertiser", Err: errors.New("rejected")}
	writer.On("InsertAdvertisers", mock.Anything, mock.Anything).Return(0, writeErr)

	consumer := NewConsumer(testKafkaConfig(), NewProcessor(writer, zap.NewNop()), nil, zap.NewNop())
	mc := &fakeMessageConsumer{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := consumer.handleMessage(ctx, testTopic, advertiserCreateMessage(), mc)

	// Offset stays uncommitted, so the message is redelivered later.
	assert.Error(t, err)
	assert.Empty(t, mc.committed)
}

func TestConsumer_HandleMessage_MalformedHaltsWithoutCommit(t *testing.T) {
	writer := new(MockWriter)
	consumer := NewConsumer(testKafkaConfig(), NewProcessor(writer, zap.NewNop()), nil, zap.NewNop())
	mc := &fakeMessageConsumer{}

	err := consumer.handleMessage(context.Background(), testTopic, malformedMessage(), mc)

	var decodeErr *domain.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
	assert.Empty(t, mc.committed)
	writer.AssertNotCalled(t, "InsertAdvertisers", mock.Anything, mock.Anything)
}

func TestConsumer_HandleMessage_MalformedDeadLetteredThenCommitted(t *testing.T) {
	writer := new(MockWriter)
	consumer := NewConsumer(testKafkaConfig(), NewProcessor(writer, zap.NewNop()), nil, zap.NewNop())
	dl := &fakeDeadLetter{}
	consumer.deadLetter = dl
	mc := &fakeMessageConsumer{}

	err := consumer.handleMessage(context.Background(), testTopic, malformedMessage(), mc)

	assert.NoError(t, err)
	assert.Len(t, dl.published, 1)
	assert.Len(t, mc.committed, 1)
	assert.Equal(t, int64(1), consumer.Stats()[testTopic].DeadLettered)
}

func TestConsumer_HandleMessage_DeadLetterFailureWithholdsCommit(t *testing.T) {
	writer := new(MockWriter)
	consumer := NewConsumer(testKafkaConfig(), NewProcessor(writer, zap.NewNop()), nil, zap.NewNop())
	dl := &fakeDeadLetter{err: errors.New("broker down")}
	consumer.deadLetter = dl
	mc := &fakeMessageConsumer{}

	err := consumer.handleMessage(context.Background(), testTopic, malformedMessage(), mc)

	assert.Error(t, err)
	assert.Empty(t, mc.committed)
}

func TestConsumer_Start_StopsOnContextCancel(t *testing.T) {
	writer := new(MockWriter)
	consumer := NewConsumer(testKafkaConfig(), NewProcessor(writer, zap.NewNop()), nil, zap.NewNop())
	consumer.newConsumer = func(topic string) (messageConsumer, error) {
		return &fakeMessageConsumer{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- consumer.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after context cancellation")
	}
}
