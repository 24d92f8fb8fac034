package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/config"
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/domain"
)

const maxRetryBackoff = 30 * time.Second

// messageConsumer is the slice of the kafka consumer the worker loop uses,
// narrowed for tests.
type messageConsumer interface {
	Subscribe(topic string, rebalanceCb kafka.RebalanceCb) error
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
	Close() error
}

// deadLetterer publishes a poison message before its offset is committed.
type deadLetterer interface {
	Publish(ctx context.Context, topic string, msg *kafka.Message) error
}

// TopicStats counts outcomes per topic for the ops endpoint.
type TopicStats struct {
	Processed    int64 `json:"processed"`
	DeadLettered int64 `json:"dead_lettered"`
}

type topicCounters struct {
	processed    atomic.Int64
	deadLettered atomic.Int64
}

// Consumer runs one worker per subscribed topic. Each worker owns its own
// broker consumer and processes messages in delivery order: decode, write,
// then commit the offset. A failed write keeps the offset uncommitted so the
// message is delivered again; duplicates are absorbed by the warehouse's
// versioned appends. Workers share nothing but the destination store.
type Consumer struct {
	cfg        config.Kafka
	processor  *Processor
	deadLetter deadLetterer
	log        *zap.Logger

	newConsumer func(topic string) (messageConsumer, error)

	mu    sync.Mutex
	stats map[string]*topicCounters
}

func NewConsumer(cfg config.Kafka, processor *Processor, deadLetter *DeadLetter, log *zap.Logger) *Consumer {
	c := &Consumer{
		cfg:       cfg,
		processor: processor,
		log:       log,
		stats:     make(map[string]*topicCounters, len(cfg.Topics)),
	}
	if deadLetter != nil {
		c.deadLetter = deadLetter
	}
	c.newConsumer = func(topic string) (messageConsumer, error) {
		return kafka.NewConsumer(&kafka.ConfigMap{
			"bootstrap.servers":  cfg.BootstrapServers,
			"group.id":           cfg.GroupID,
			"auto.offset.reset":  cfg.AutoOffsetReset,
			"enable.auto.commit": false,
		})
	}
	for _, topic := range cfg.Topics {
		c.stats[topic] = &topicCounters{}
	}
	return c
}

// Stats returns a per-topic snapshot of processing counters.
func (c *Consumer) Stats() map[string]TopicStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]TopicStats, len(c.stats))
	for topic, counters := range c.stats {
		out[topic] = TopicStats{
			Processed:    counters.processed.Load(),
			DeadLettered: counters.deadLettered.Load(),
		}
	}
	return out
}

// Start runs a worker per topic and blocks until all of them exit. Workers
// exit on context cancellation, or individually on an unrecoverable error
// under the halt policy; the rest keep consuming.
func (c *Consumer) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, len(c.cfg.Topics))

	for i, topic := range c.cfg.Topics {
		wg.Add(1)
		go func(i int, topic string) {
			defer wg.Done()
			if err := c.runTopic(ctx, topic); err != nil {
				c.log.Error("Topic worker stopped",
					zap.String("topic", topic),
					zap.Error(err))
				errs[i] = err
			}
		}(i, topic)
	}

	wg.Wait()
	return errors.Join(errs...)
}

func (c *Consumer) runTopic(ctx context.Context, topic string) error {
	mc, err := c.newConsumer(topic)
	if err != nil {
		return &domain.ConnectionError{System: "kafka", Err: err}
	}
	defer func() {
		if err := mc.Close(); err != nil {
			c.log.Error("Failed to close consumer",
				zap.String("topic", topic),
				zap.Error(err))
		}
	}()

	if err := mc.Subscribe(topic, nil); err != nil {
		return &domain.ConnectionError{System: "kafka", Err: err}
	}

	c.log.Info("Consuming topic", zap.String("topic", topic))

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Topic worker shutting down", zap.String("topic", topic))
			return nil
		default:
		}

		msg, err := mc.ReadMessage(c.cfg.PollTimeout())
		if err != nil {
			var kErr kafka.Error
			if errors.As(err, &kErr) && kErr.IsTimeout() {
				continue
			}
			c.log.Error("Error reading from topic",
				zap.String("topic", topic),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if err := c.handleMessage(ctx, topic, msg, mc); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// handleMessage decodes, writes, and commits one message, in that order. The
// offset only moves once the write is confirmed. A message that cannot be
// decoded is dead-lettered before its offset commits, or halts the worker if
// no dead-letter topic is configured.
func (c *Consumer) handleMessage(ctx context.Context, topic string, msg *kafka.Message, mc messageConsumer) error {
	env, err := DecodeEnvelope(msg.Value)
	if err == nil {
		err = c.processWithRetry(ctx, topic, env)
	}

	if err != nil {
		var decodeErr *domain.DecodeError
		if !errors.As(err, &decodeErr) {
			return err
		}

		if c.deadLetter == nil {
			// Halt policy: stall the topic rather than silently lose data.
			return &domain.DecodeError{Topic: topic, Err: decodeErr.Err}
		}

		c.log.Warn("Dead-lettering undecodable message",
			zap.String("topic", topic),
			zap.Error(decodeErr))
		if err := c.deadLetter.Publish(ctx, topic, msg); err != nil {
			return err
		}
		c.counters(topic).deadLettered.Add(1)
	} else {
		c.counters(topic).processed.Add(1)
	}

	if _, err := mc.CommitMessage(msg); err != nil {
		// The write is durable and idempotent; a lost commit only means a
		// duplicate delivery later.
		c.log.Warn("Failed to commit offset",
			zap.String("topic", topic),
			zap.Error(err))
	}
	return nil
}

// processWithRetry applies the event, backing off and retrying on retriable
// failures until the write lands or the context ends. Decode-class errors
// surface immediately.
func (c *Consumer) processWithRetry(ctx context.Context, topic string, env *Envelope) error {
	backoff := time.Second

	for {
		err := c.processor.Process(ctx, env)
		if err == nil {
			return nil
		}

		var decodeErr *domain.DecodeError
		if errors.As(err, &decodeErr) {
			return err
		}

		c.log.Warn("Write failed, retrying",
			zap.String("topic", topic),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}

func (c *Consumer) counters(topic string) *topicCounters {
	c.mu.Lock()
	defer c.mu.Unlock()

	counters, ok := c.stats[topic]
	if !ok {
		counters = &topicCounters{}
		c.stats[topic] = counters
	}
	return counters
}
