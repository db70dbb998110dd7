package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// MessageHandler обрабатывает одно сообщение.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// ConsumerOption настраивает Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLogger задаёт logger.
func WithConsumerLogger(logger *log.Entry) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetries задаёт число попыток обработки и паузу между ними.
func WithRetries(attempts int, delay time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		if delay >= 0 {
			c.retryDelay = delay
		}
	}
}

// WithDeadLetterProducer отправляет необработанные сообщения в DLQ.
func WithDeadLetterProducer(producer *Producer) ConsumerOption {
	return func(c *Consumer) {
		c.dlq = producer
	}
}

// Consumer читает топики в составе consumer group.
type Consumer struct {
	group       sarama.ConsumerGroup
	topics      []string
	handler     MessageHandler
	logger      *log.Entry
	dlq         *Producer
	maxAttempts int
	retryDelay  time.Duration
	wg          sync.WaitGroup
}

// NewConsumer подключается к брокерам и создаёт consumer group.
func NewConsumer(brokers []string, groupID string, topics []string, handler MessageHandler, opts ...ConsumerOption) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}
	return newConsumer(group, topics, handler, opts...), nil
}

func newConsumer(group sarama.ConsumerGroup, topics []string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		group:       group,
		topics:      topics,
		handler:     handler,
		logger:      log.WithField("component", "kafka-consumer"),
		maxAttempts: 3,
		retryDelay:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start запускает чтение в фоне. Consume перезапускается после каждого rebalance.
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.group.Consume(ctx, c.topics, c); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.WithError(err).Error("consumer group error")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.WithError(err).Warn("consumer error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
}

// Stop закрывает consumer group и ждёт фоновые горутины.
func (c *Consumer) Stop() error {
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim обрабатывает сообщения партиции. Сообщение, которое не удалось
// обработать и переложить в DLQ, не коммитится.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			logger := c.logger.WithFields(log.Fields{
				"topic":     message.Topic,
				"partition": message.Partition,
				"offset":    message.Offset,
			})

			if err := c.process(session.Context(), message); err != nil {
				logger.WithError(err).Error("message processing failed")
				continue
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) process(ctx context.Context, message *sarama.ConsumerMessage) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if lastErr = c.handler(ctx, message); lastErr == nil {
			return nil
		}
		if attempt == c.maxAttempts || c.retryDelay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}

	if c.dlq == nil {
		return lastErr
	}
	if err := c.sendToDLQ(message, lastErr); err != nil {
		return fmt.Errorf("dead letter: %w (handler: %v)", err, lastErr)
	}
	c.logger.WithField("topic", message.Topic).Warn("message moved to DLQ")
	return nil
}

func (c *Consumer) sendToDLQ(message *sarama.ConsumerMessage, cause error) error {
	env, err := ParseEnvelope(message)
	if err != nil {
		env = Envelope{ID: string(message.Key), Payload: message.Value}
	}
	dead := domain.NewDeadLetter(domain.OutboxMessage{
		ID:            env.ID,
		AggregateType: env.AggregateType,
		AggregateID:   env.AggregateID,
		EventType:     env.EventType,
		Payload:       env.Payload,
	}, cause, c.maxAttempts, time.Now().UTC())

	return c.dlq.PublishJSON(TopicDeadLetter, string(message.Key), dead, map[string]string{
		HeaderRetryCount: strconv.Itoa(c.maxAttempts),
		HeaderEventType:  env.EventType,
	})
}

// NewChangeHandler переводит события других экземпляров в локальные уведомления.
// Собственные события (по origin) и неизвестные агрегаты пропускаются.
func NewChangeHandler(notifier domain.ChangeNotifier, origin string, logger *log.Entry) MessageHandler {
	if logger == nil {
		logger = log.WithField("component", "kafka-change-handler")
	}
	return func(_ context.Context, message *sarama.ConsumerMessage) error {
		env, err := ParseEnvelope(message)
		if err != nil {
			logger.WithError(err).WithField("offset", message.Offset).Warn("skipping malformed change event")
			return nil
		}
		if origin != "" && env.Origin == origin {
			return nil
		}
		kind, ok := ChangeKindFor(env.AggregateType)
		if !ok {
			return nil
		}

		occurred := env.PublishedAt
		if occurred.IsZero() {
			occurred = time.Now().UTC()
		}
		notifier.Notify(domain.ChangeEvent{
			Kind:      kind,
			EventType: env.EventType,
			EntityID:  env.AggregateID,
			Origin:    env.Origin,
			Occurred:  occurred,
		})
		return nil
	}
}
